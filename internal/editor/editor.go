// Package editor implements the single-threaded line editor (C10):
// raw-mode terminal input, UTF-8-safe cursor motion, word motion, wrap
// math, bracketed paste, and bounded history, per spec.md §4.8. It is the
// one component the agent loop (C12) blocks on between turns; it does not
// run concurrently with a provider call or tool dispatch.
package editor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"

	"github.com/nmnduy/claude-c-sub001/internal/interrupt"
)

// ErrInterrupted is returned by ReadLine when Ctrl+C is pressed.
var ErrInterrupted = fmt.Errorf("editor: interrupted")

// ErrEOF is returned by ReadLine when Ctrl+D is pressed on an empty line.
var ErrEOF = fmt.Errorf("editor: eof")

// Editor drives one logical line of input across possibly many terminal
// reads. It owns the terminal's raw-mode lifecycle: restored on every
// return path out of ReadLine.
type Editor struct {
	fd       int
	in       *bufio.Reader
	out      io.Writer
	bus      *interrupt.Bus
	history  *History
	sanitize SanitizeOptions
	termW    int

	state *State
	dec   decoder
	paste PasteCollector
}

// Option configures an Editor.
type Option func(*Editor)

// WithTerminalWidth overrides the wrap-math terminal width (default 80),
// used when stdout isn't a real tty (tests, piped output).
func WithTerminalWidth(w int) Option {
	return func(e *Editor) { e.termW = w }
}

// WithHistory overrides the default-capacity History.
func WithHistory(h *History) Option {
	return func(e *Editor) { e.history = h }
}

// WithSanitizeOptions overrides the bracketed-paste sanitization rules.
func WithSanitizeOptions(opts SanitizeOptions) Option {
	return func(e *Editor) { e.sanitize = opts }
}

// New builds an Editor reading from in (raw terminal fd) and writing
// rendering output to out. bus is the shared interrupt signal (C9); ESC
// pressed mid-line sets it, same as during an API call or tool dispatch.
func New(fd int, in io.Reader, out io.Writer, bus *interrupt.Bus, opts ...Option) *Editor {
	e := &Editor{
		fd:       fd,
		in:       bufio.NewReader(in),
		out:      out,
		bus:      bus,
		history:  NewHistory(0),
		sanitize: DefaultSanitizeOptions(),
		termW:    80,
		state:    NewState(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// enterRaw puts the terminal into raw mode per spec.md §4.8: canonical
// mode off, per-byte reads, CR->NL translation off so Enter (\r) and
// Ctrl+J (\n) are distinguishable. Returns a restore func; a no-op when
// fd isn't backed by a real terminal (e.g. tests piping a bytes.Reader).
func (e *Editor) enterRaw() (restore func(), err error) {
	if !term.IsTerminal(e.fd) {
		return func() {}, nil
	}
	old, err := term.MakeRaw(e.fd)
	if err != nil {
		return nil, fmt.Errorf("editor: enter raw mode: %w", err)
	}
	return func() { _ = term.Restore(e.fd, old) }, nil
}

// ReadLine reads one logical line (possibly spanning several Ctrl+J
// continuation rows) from the terminal, rendering it with prompt as it
// grows, and returns it on Enter. The terminal is restored to cooked mode
// on every exit path, including an error.
func (e *Editor) ReadLine(ctx context.Context, prompt string) (string, error) {
	restore, err := e.enterRaw()
	if err != nil {
		return "", err
	}
	defer restore()

	e.state.Reset()
	e.bus.Clear()
	e.redraw(prompt)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		b, err := e.in.ReadByte()
		if err != nil {
			if e.state.Buffer() == "" {
				return "", ErrEOF
			}
			return e.state.Buffer(), nil
		}

		e.state.QueueKey(b)
		for {
			qb, ok := e.state.DequeueKey()
			if !ok {
				break
			}

			if e.paste.Active() {
				// While a paste is in progress, every raw byte is
				// captured verbatim (not decoded as a key), so pasted
				// content that happens to contain escape-like bytes
				// isn't misread as editor commands. Only the literal
				// end-marker bytes terminate collection.
				e.paste.Feed(qb)
				if bytes.HasSuffix(e.paste.Bytes(), []byte(pasteEndSeq)) {
					raw := e.paste.EndTrimSuffix(len(pasteEndSeq))
					e.state.InsertText(Sanitize(raw, e.sanitize))
				}
				continue
			}

			ev, ready := e.dec.feed(qb)
			for ready {
				if ev.kind == keyPasteStart {
					e.paste.Begin()
					break
				}
				line, done, err := e.apply(ev)
				if err != nil {
					return "", err
				}
				if done {
					return line, nil
				}
				// A bare ESC leaves the byte after it pending; decode it
				// now rather than on the next keypress.
				ev, ready = e.dec.tryDecode()
			}
		}
		e.redraw(prompt)
	}
}

// apply handles one decoded event against the editor state. done==true
// means ReadLine should return line immediately. Never called while a
// paste is in progress — ReadLine handles that case directly.
func (e *Editor) apply(ev decoded) (line string, done bool, err error) {
	switch ev.kind {
	case keyEnter:
		line := e.state.Buffer()
		e.history.Add(line)
		return line, true, nil
	case keyNewline:
		e.state.InsertText("\n")
	case keyRune:
		e.state.InsertText(string(ev.r))
	case keyBackspace:
		e.state.Backspace()
	case keyDeleteForward:
		e.state.DeleteForward()
	case keyCtrlC:
		e.bus.Request()
		return "", false, ErrInterrupted
	case keyCtrlD:
		if e.state.Buffer() == "" {
			return "", false, ErrEOF
		}
		e.state.DeleteForward()
	case keyCtrlW:
		e.state.DeleteWordLeft()
	case keyEscape:
		e.bus.Request()
	case keyLeft:
		e.state.MoveLeft()
	case keyRight:
		e.state.MoveRight()
	case keyHome:
		e.state.Home()
	case keyEnd:
		e.state.End()
	case keyCtrlLeft:
		e.state.WordLeft()
	case keyCtrlRight:
		e.state.WordRight()
	case keyUp:
		if text, ok := e.history.Up(e.state.Buffer()); ok {
			e.state.SetBuffer(text)
		}
	case keyDown:
		if text, ok := e.history.Down(); ok {
			e.state.SetBuffer(text)
		}
	}
	return "", false, nil
}

// redraw repaints the current line: carriage return, clear-to-end-of-
// screen, prompt, buffer, then a cursor-position escape computed from
// wrap math. Rendering full terminal output isn't independently testable
// without a real tty; the wrap math it's built on (State.Wrap) is tested
// directly.
func (e *Editor) redraw(prompt string) {
	promptWidth := visibleWidth(prompt)
	pos := e.state.Wrap(promptWidth, e.termW) // TotalLines here is buffer-wide regardless of cursor

	var b strings.Builder
	b.WriteString("\r\x1b[J") // CR + clear from cursor to end of screen
	b.WriteString(prompt)
	b.WriteString(strings.ReplaceAll(e.state.Buffer(), "\n", "\r\n"))

	// The cursor is left after the last byte written, i.e. at
	// (total.TotalLines, <end column>). Move up to the cursor's actual
	// line, then to its column.
	if up := pos.TotalLines - pos.CursorLine; up > 0 {
		fmt.Fprintf(&b, "\x1b[%dA", up)
	}
	fmt.Fprintf(&b, "\r\x1b[%dC", pos.CursorColumn)
	_, _ = io.WriteString(e.out, b.String())
}

// WatchEscape reads raw bytes from in (expected to already be in raw mode,
// shared with a ReadLine-free window such as an in-flight provider call or
// tool dispatch) and sets bus the moment a bare ESC is observed, per
// spec.md §4.7/§4.8 ("ESC detection shared between line editor, HTTP, tool
// workers"). It returns when ctx is cancelled.
func WatchEscape(ctx context.Context, in io.Reader, bus *interrupt.Bus) {
	r := bufio.NewReader(in)
	var dec decoder
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		if ev, ready := dec.feed(b); ready && ev.kind == keyEscape {
			bus.Request()
		}
	}
}
