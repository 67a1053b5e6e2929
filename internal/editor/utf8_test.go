package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuneLen(t *testing.T) {
	tests := []struct {
		name string
		b    byte
		want int
	}{
		{"ascii", 'a', 1},
		{"two-byte lead", 0xC2, 2},
		{"three-byte lead", 0xE2, 3},
		{"four-byte lead", 0xF0, 4},
		{"continuation as lead", 0x80, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runeLen(tt.b))
		})
	}
}

// TestCursorMotion_P7 sweeps MoveLeft/MoveRight over a buffer containing
// multi-byte UTF-8 code points and asserts the cursor never lands on a
// continuation byte (P7).
func TestCursorMotion_P7(t *testing.T) {
	s := NewState()
	s.InsertText("aé中\U0001F600z") // a, é, 中, 😀, z

	assertBoundary := func() {
		buf := []byte(s.Buffer())
		if off := s.Cursor(); off < len(buf) {
			assert.False(t, isContinuation(buf[off]), "cursor at %d landed mid-rune", off)
		}
	}

	for s.Cursor() < len(s.Buffer()) {
		s.MoveRight()
		assertBoundary()
	}
	for s.Cursor() > 0 {
		s.MoveLeft()
		assertBoundary()
	}
}

func TestBackspaceDeleteForward_WholeCodepoint(t *testing.T) {
	s := NewState()
	s.InsertText("a中b") // a, 中, b
	s.MoveLeft()             // cursor before 'b'
	s.Backspace()            // should delete the whole 3-byte 中, not one byte
	assert.Equal(t, "ab", s.Buffer())
}
