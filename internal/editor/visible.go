package editor

// visibleWidth measures the display-column width of s per spec.md §4.8's
// visible-length contract: a complete ANSI CSI escape (ESC '[' ... final,
// where final is in A-Z or a-z) contributes 0 columns; an incomplete
// escape at the end of s also contributes 0; every other byte contributes
// 1 column. Operates on bytes, not runes — matching the contract's own
// "other bytes contribute 1" wording, and good enough since prompts are
// typically ASCII plus ANSI SGR sequences.
func visibleWidth(s string) int {
	width := 0
	i := 0
	for i < len(s) {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && !isCSIFinal(s[j]) {
				j++
			}
			if j < len(s) {
				// Complete escape: consume through the final byte, 0 width.
				i = j + 1
				continue
			}
			// Incomplete escape trailing off the end of s: consume the
			// rest, still 0 width.
			break
		}
		width++
		i++
	}
	return width
}

func isCSIFinal(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
