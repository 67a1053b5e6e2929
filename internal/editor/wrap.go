package editor

// WrapPosition is the result of the wrap-math contract of spec.md §4.8:
// where the cursor lands, and how many display lines the whole buffer
// currently occupies.
type WrapPosition struct {
	CursorLine   int
	CursorColumn int
	TotalLines   int
}

// computeWrap implements the contract exactly:
//   - column 0 of line 0 starts at the prompt's end (cursor_column =
//     promptWidth before any input);
//   - each visible cell advances column by 1; at column == termWidth the
//     next cell starts a new line at column 1;
//   - a literal '\n' advances to (line+1, 0), no implicit prompt;
//   - total_lines is the wrapped extent of the *entire* buffer (cursor at
//     end), independent of cursorByteOffset.
func computeWrap(buf []byte, cursorByteOffset, promptWidth, termWidth int) WrapPosition {
	if termWidth < 1 {
		termWidth = 1
	}

	cursorLine, cursorColumn := layout(buf[:cursorByteOffset], promptWidth, termWidth)
	totalLine, _ := layout(buf, promptWidth, termWidth)

	return WrapPosition{
		CursorLine:   cursorLine,
		CursorColumn: cursorColumn,
		TotalLines:   totalLine,
	}
}

// layout walks buf as a sequence of UTF-8 code points, applying the wrap
// rules above, and returns the (line, column) reached after the last one.
func layout(buf []byte, promptWidth, termWidth int) (line, col int) {
	col = promptWidth
	for i := 0; i < len(buf); {
		n := runeLen(buf[i])
		if i+n > len(buf) {
			n = len(buf) - i
		}
		if buf[i] == '\n' {
			line++
			col = 0
		} else if col >= termWidth {
			line++
			col = 1
		} else {
			col++
		}
		i += n
	}
	return line, col
}
