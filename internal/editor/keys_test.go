package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedAll(t *testing.T, d *decoder, bs []byte) []decoded {
	t.Helper()
	var out []decoded
	for _, b := range bs {
		// Like ReadLine, keep decoding after an event until nothing more
		// is ready, so a byte left pending after a bare ESC is emitted.
		for ev, ok := d.feed(b); ok; ev, ok = d.tryDecode() {
			out = append(out, ev)
		}
	}
	return out
}

func TestDecoder_PlainRunes(t *testing.T) {
	var d decoder
	evs := feedAll(t, &d, []byte("ab"))
	require.Len(t, evs, 2)
	assert.Equal(t, keyRune, evs[0].kind)
	assert.Equal(t, 'a', evs[0].r)
	assert.Equal(t, 'b', evs[1].r)
}

func TestDecoder_MultiByteRune(t *testing.T) {
	var d decoder
	evs := feedAll(t, &d, []byte("中"))
	require.Len(t, evs, 1)
	assert.Equal(t, '中', evs[0].r)
}

func TestDecoder_EnterVsCtrlJ(t *testing.T) {
	var d decoder
	evs := feedAll(t, &d, []byte{'\r'})
	require.Len(t, evs, 1)
	assert.Equal(t, keyEnter, evs[0].kind)

	d = decoder{}
	evs = feedAll(t, &d, []byte{'\n'})
	require.Len(t, evs, 1)
	assert.Equal(t, keyNewline, evs[0].kind)
}

func TestDecoder_ArrowKeys(t *testing.T) {
	tests := []struct {
		seq  []byte
		want key
	}{
		{[]byte("\x1b[A"), keyUp},
		{[]byte("\x1b[B"), keyDown},
		{[]byte("\x1b[C"), keyRight},
		{[]byte("\x1b[D"), keyLeft},
		{[]byte("\x1b[3~"), keyDeleteForward},
	}
	for _, tt := range tests {
		var d decoder
		evs := feedAll(t, &d, tt.seq)
		require.Len(t, evs, 1, "%q", tt.seq)
		assert.Equal(t, tt.want, evs[0].kind)
	}
}

func TestDecoder_SplitEscapeSequenceAcrossFeeds(t *testing.T) {
	var d decoder
	ev, ok := d.feed(0x1b)
	assert.False(t, ok)
	ev, ok = d.feed('[')
	assert.False(t, ok)
	ev, ok = d.feed('A')
	require.True(t, ok)
	assert.Equal(t, keyUp, ev.kind)
}

func TestDecoder_BareEscape(t *testing.T) {
	var d decoder
	evs := feedAll(t, &d, []byte{0x1b, 'x'})
	require.Len(t, evs, 2)
	assert.Equal(t, keyEscape, evs[0].kind)
	assert.Equal(t, keyRune, evs[1].kind)
	assert.Equal(t, 'x', evs[1].r)
}

func TestDecoder_BracketedPasteMarkers(t *testing.T) {
	var d decoder
	evs := feedAll(t, &d, []byte(pasteStartSeq))
	require.Len(t, evs, 1)
	assert.Equal(t, keyPasteStart, evs[0].kind)

	d = decoder{}
	evs = feedAll(t, &d, []byte(pasteEndSeq))
	require.Len(t, evs, 1)
	assert.Equal(t, keyPasteEnd, evs[0].kind)
}

func TestDecoder_ControlKeys(t *testing.T) {
	tests := []struct {
		b    byte
		want key
	}{
		{0x7f, keyBackspace},
		{0x03, keyCtrlC},
		{0x04, keyCtrlD},
		{0x17, keyCtrlW},
	}
	for _, tt := range tests {
		var d decoder
		evs := feedAll(t, &d, []byte{tt.b})
		require.Len(t, evs, 1)
		assert.Equal(t, tt.want, evs[0].kind)
	}
}
