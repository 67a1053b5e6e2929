package editor

// key identifies one decoded input event from the raw byte stream.
type key int

const (
	keyNone key = iota
	keyRune
	keyEnter
	keyBackspace
	keyDeleteForward
	keyCtrlC
	keyCtrlD
	keyEscape // bare ESC, not part of a recognized CSI sequence
	keyUp
	keyDown
	keyLeft
	keyRight
	keyHome
	keyEnd
	keyCtrlLeft  // word-left
	keyCtrlRight // word-right
	keyCtrlW     // delete-word-left
	keyNewline   // Ctrl+J, a literal newline within the logical line
	keyPasteStart
	keyPasteEnd
)

// decoded is one fully-recognized input event, plus its rune payload when
// key == keyRune.
type decoded struct {
	kind key
	r    rune
}

// decoder consumes raw bytes from the terminal and assembles them into
// decoded events, buffering partial escape sequences across reads so a
// sequence split across two terminal reads is never misinterpreted as
// literal characters.
type decoder struct {
	pending []byte
}

// feed appends a newly read byte and tries to decode one event. It
// returns ok=false when more bytes are needed before a decision can be
// made (an in-progress escape sequence).
func (d *decoder) feed(b byte) (decoded, bool) {
	d.pending = append(d.pending, b)
	return d.tryDecode()
}

func (d *decoder) tryDecode() (decoded, bool) {
	buf := d.pending
	if len(buf) == 0 {
		return decoded{}, false
	}

	switch buf[0] {
	case 0x1b: // ESC
		return d.decodeEscape(buf)
	case '\r':
		d.pending = nil
		return decoded{kind: keyEnter}, true
	case '\n':
		// Ctrl+J: raw mode disables CR->NL translation, so a literal \n
		// byte only arrives via Ctrl+J, never Enter. Inserted as a
		// continuation newline within the logical line (spec.md §4.8).
		d.pending = nil
		return decoded{kind: keyNewline}, true
	case 0x7f, 0x08:
		d.pending = nil
		return decoded{kind: keyBackspace}, true
	case 0x03:
		d.pending = nil
		return decoded{kind: keyCtrlC}, true
	case 0x04:
		d.pending = nil
		return decoded{kind: keyCtrlD}, true
	case 0x17: // Ctrl+W
		d.pending = nil
		return decoded{kind: keyCtrlW}, true
	}

	r, size := decodeRuneFromPending(buf)
	if size == 0 {
		// Incomplete multi-byte rune: wait for more bytes.
		return decoded{}, false
	}
	d.pending = d.pending[size:]
	if len(d.pending) == 0 {
		d.pending = nil
	}
	return decoded{kind: keyRune, r: r}, true
}

func (d *decoder) decodeEscape(buf []byte) (decoded, bool) {
	if len(buf) == 1 {
		// Could be a bare ESC, or the start of "ESC [ ...". Wait one more
		// byte to disambiguate; there is no timeout, so a lone ESC is
		// reported only once the next byte arrives.
		return decoded{}, false
	}
	if buf[1] != '[' && buf[1] != 'O' {
		// Not a CSI/SS3 sequence: treat the ESC alone as bare, and
		// leave buf[1:] pending for the caller's next tryDecode call.
		d.pending = buf[1:]
		return decoded{kind: keyEscape}, true
	}

	// Scan for the final byte of a CSI sequence: ESC [ <params> <final>,
	// where final is '~' (extended keys) or a letter (cursor keys).
	for i := 2; i < len(buf); i++ {
		c := buf[i]
		if c == '~' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
			seq := string(buf[:i+1])
			d.pending = nil
			return decoded{kind: classifyCSI(seq)}, true
		}
	}
	// Sequence not yet complete.
	return decoded{}, false
}

// classifyCSI maps a complete "ESC [ ..." or "ESC O ..." sequence to a key.
func classifyCSI(seq string) key {
	switch seq {
	case "\x1b[A":
		return keyUp
	case "\x1b[B":
		return keyDown
	case "\x1b[C":
		return keyRight
	case "\x1b[D":
		return keyLeft
	case "\x1b[H", "\x1bOH":
		return keyHome
	case "\x1b[F", "\x1bOF":
		return keyEnd
	case "\x1b[1;5C", "\x1b[1;3C":
		return keyCtrlRight
	case "\x1b[1;5D", "\x1b[1;3D":
		return keyCtrlLeft
	case "\x1b[3~":
		return keyDeleteForward
	case "\x1b[200~":
		return keyPasteStart
	case "\x1b[201~":
		return keyPasteEnd
	default:
		return keyNone
	}
}

// decodeRuneFromPending decodes a UTF-8 code point from the start of buf,
// returning size == 0 if more bytes are needed.
func decodeRuneFromPending(buf []byte) (rune, int) {
	n := runeLen(buf[0])
	if n > len(buf) {
		return 0, 0
	}
	r := decodeUTF8(buf[:n])
	return r, n
}

// decodeUTF8 decodes exactly one code point from a byte slice known to be
// n == runeLen(b[0]) long. The bytes are not validated, since the
// editor's job is display, not strict UTF-8 validation: a malformed
// sequence decodes to whatever its payload bits give, and only a slice of
// unexpected length decodes to '?'.
func decodeUTF8(b []byte) rune {
	switch len(b) {
	case 1:
		return rune(b[0])
	case 2:
		return rune(b[0]&0x1F)<<6 | rune(b[1]&0x3F)
	case 3:
		return rune(b[0]&0x0F)<<12 | rune(b[1]&0x3F)<<6 | rune(b[2]&0x3F)
	case 4:
		return rune(b[0]&0x07)<<18 | rune(b[1]&0x3F)<<12 | rune(b[2]&0x3F)<<6 | rune(b[3]&0x3F)
	default:
		return '?'
	}
}
