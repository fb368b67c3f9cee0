package tty

import (
	"io"

	"multiterm/device/video/console"
)

// VT implements a terminal that writes through to its attached console. The
// terminal interprets the following special characters:
//   - \r (carriage-return)
//   - \n (line-feed)
//   - \b (backspace)
//   - \t (tab; expanded to tabWidth spaces)
//
// Each VT also owns a line discipline that collects keyboard input into lines
// for readers of the terminal.
type VT struct {
	cons console.Device

	// Terminal dimensions
	width  uint32
	height uint32

	// Terminal state.
	tabWidth         uint8
	defaultFg, curFg uint8
	defaultBg, curBg uint8
	cursorX          uint32
	cursorY          uint32

	ldisc lineDiscipline
}

// NewVT creates a new virtual terminal device. The tabWidth parameter controls
// tab expansion.
func NewVT(tabWidth uint8) *VT {
	return &VT{
		tabWidth: tabWidth,
		cursorX:  1,
		cursorY:  1,
	}
}

// AttachTo connects a TTY to a console instance.
func (t *VT) AttachTo(cons console.Device) {
	if cons == nil {
		return
	}

	t.cons = cons
	t.width, t.height = cons.Dimensions(console.Characters)
	t.defaultFg, t.defaultBg = cons.DefaultColors()
	t.curFg, t.curBg = t.defaultFg, t.defaultBg
	t.cursorX, t.cursorY = 1, 1
	t.cons.SetCursor(t.cursorX, t.cursorY)
}

// CursorPosition returns the current cursor position.
func (t *VT) CursorPosition() (uint32, uint32) {
	return t.cursorX, t.cursorY
}

// SetCursorPosition sets the current cursor position to (x,y).
func (t *VT) SetCursorPosition(x, y uint32) {
	if t.cons == nil {
		return
	}

	if x < 1 {
		x = 1
	} else if x > t.width {
		x = t.width
	}

	if y < 1 {
		y = 1
	} else if y > t.height {
		y = t.height
	}

	t.cursorX, t.cursorY = x, y
	t.cons.SetCursor(x, y)
}

// Clear blanks the terminal using the default colors and moves the cursor to
// the top-left corner.
func (t *VT) Clear() {
	if t.cons == nil {
		return
	}

	t.cons.Fill(1, 1, t.width, t.height, t.defaultFg, t.defaultBg)
	t.SetCursorPosition(1, 1)
}

// Write implements io.Writer.
func (t *VT) Write(data []byte) (int, error) {
	for count, b := range data {
		err := t.writeByte(b)
		if err != nil {
			return count, err
		}
	}

	if t.cons != nil {
		t.cons.SetCursor(t.cursorX, t.cursorY)
	}
	return len(data), nil
}

// WriteByte implements io.ByteWriter.
func (t *VT) WriteByte(b byte) error {
	if err := t.writeByte(b); err != nil {
		return err
	}

	t.cons.SetCursor(t.cursorX, t.cursorY)
	return nil
}

func (t *VT) writeByte(b byte) error {
	if t.cons == nil {
		return io.ErrClosedPipe
	}

	switch b {
	case '\r':
		t.cr()
	case '\n':
		t.lf(true)
	case '\b':
		if t.cursorX > 1 {
			t.cursorX--
			t.doWrite(' ', false)
		} else if t.cursorY > 1 {
			// Backspace over a wrapped line.
			t.cursorX, t.cursorY = t.width, t.cursorY-1
			t.doWrite(' ', false)
		}
	case '\t':
		for i := uint8(0); i < t.tabWidth; i++ {
			t.doWrite(' ', true)
		}
	default:
		t.doWrite(b, true)
	}

	return nil
}

// doWrite writes the specified character together with the current fg/bg
// attributes at the cursor position advancing the cursor position if
// advanceCursor is true.
func (t *VT) doWrite(b byte, advanceCursor bool) {
	t.cons.Write(b, t.curFg, t.curBg, t.cursorX, t.cursorY)

	if advanceCursor {
		// Advance x position and handle wrapping when the cursor reaches the
		// end of the current line
		t.cursorX++
		if t.cursorX > t.width {
			t.lf(true)
		}
	}
}

// cr resets the x coordinate of the terminal cursor to 0.
func (t *VT) cr() {
	t.cursorX = 1
}

// lf advances the y coordinate of the terminal cursor by one line scrolling
// the console contents if the end of the last terminal line is reached.
func (t *VT) lf(withCR bool) {
	if withCR {
		t.cursorX = 1
	}

	if t.cursorY+1 <= t.height {
		t.cursorY++
		return
	}

	t.cons.Scroll(console.ScrollDirUp, 1)
	t.cons.Fill(1, t.height, t.width, 1, t.defaultFg, t.defaultBg)
}
