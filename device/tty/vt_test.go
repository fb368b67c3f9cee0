package tty

import (
	"bytes"
	"io"
	"testing"

	"multiterm/device"
	"multiterm/device/video/console"
)

func TestVtPosition(t *testing.T) {
	specs := []struct {
		inX, inY   uint32
		expX, expY uint32
	}{
		{20, 20, 20, 20},
		{100, 20, 80, 20},
		{10, 200, 10, 25},
		{10, 200, 10, 25},
		{100, 100, 80, 25},
		{0, 0, 1, 1},
	}

	var term Device = NewVT(4)

	// SetCursorPosition without an attached console is a no-op
	term.SetCursorPosition(2, 2)

	if curX, curY := term.CursorPosition(); curX != 1 || curY != 1 {
		t.Fatalf("expected terminal initial position to be (1, 1); got (%d, %d)", curX, curY)
	}

	cons := newMockConsole(80, 25)
	term.AttachTo(cons)

	for specIndex, spec := range specs {
		term.SetCursorPosition(spec.inX, spec.inY)
		if x, y := term.CursorPosition(); x != spec.expX || y != spec.expY {
			t.Errorf("[spec %d] expected setting position to (%d, %d) to update the position to (%d, %d); got (%d, %d)", specIndex, spec.inX, spec.inY, spec.expX, spec.expY, x, y)
		}
		if cons.cursorX != spec.expX || cons.cursorY != spec.expY {
			t.Errorf("[spec %d] expected console cursor to follow the terminal cursor; got (%d, %d)", specIndex, cons.cursorX, cons.cursorY)
		}
	}
}

func TestVtWrite(t *testing.T) {
	cons := newMockConsole(80, 25)

	term := NewVT(4)
	if _, err := term.Write([]byte("foo")); err != io.ErrClosedPipe {
		t.Fatal("expected calling Write on a terminal without an attached console to return ErrClosedPipe")
	}
	if err := term.WriteByte('f'); err != io.ErrClosedPipe {
		t.Fatal("expected calling WriteByte on a terminal without an attached console to return ErrClosedPipe")
	}

	term.AttachTo(cons)

	term.curFg = 2
	term.curBg = 3

	data := []byte("\b123\b4\t5\n67\r68")
	count, err := term.Write(data)
	if err != nil {
		t.Fatal(err)
	}

	if count != len(data) {
		t.Fatalf("expected to write %d bytes; wrote %d", len(data), count)
	}

	specs := []struct {
		x, y    uint32
		expByte uint8
	}{
		{1, 1, '1'},
		{2, 1, '2'},
		{3, 1, '4'},
		{8, 1, '5'}, // 2 + tabWidth + 1
		{1, 2, '6'},
		{2, 2, '8'},
	}

	for specIndex, spec := range specs {
		offset := ((spec.y - 1) * cons.width) + (spec.x - 1)
		if cons.chars[offset] != spec.expByte {
			t.Errorf("[spec %d] expected console char at (%d, %d) to be %q; got %q", specIndex, spec.x, spec.y, spec.expByte, cons.chars[offset])
		}

		if cons.fgAttrs[offset] != term.curFg {
			t.Errorf("[spec %d] expected console fg attribute at (%d, %d) to be %d; got %d", specIndex, spec.x, spec.y, term.curFg, cons.fgAttrs[offset])
		}

		if cons.bgAttrs[offset] != term.curBg {
			t.Errorf("[spec %d] expected console bg attribute at (%d, %d) to be %d; got %d", specIndex, spec.x, spec.y, term.curBg, cons.bgAttrs[offset])
		}
	}

	if cons.cursorX != 3 || cons.cursorY != 2 {
		t.Fatalf("expected console cursor at (3, 2); got (%d, %d)", cons.cursorX, cons.cursorY)
	}

	if err := term.WriteByte('9'); err != nil {
		t.Fatal(err)
	}
	if cons.chars[cons.width+2] != '9' || cons.cursorX != 4 {
		t.Fatal("expected WriteByte to write at the cursor and advance it")
	}
}

func TestVtBackspaceAcrossWrappedLine(t *testing.T) {
	cons := newMockConsole(10, 5)
	term := NewVT(4)
	term.AttachTo(cons)

	term.Write([]byte("0123456789"))
	if x, y := term.CursorPosition(); x != 1 || y != 2 {
		t.Fatalf("expected the cursor to wrap to (1, 2); got (%d, %d)", x, y)
	}

	term.Write([]byte{'\b'})
	if x, y := term.CursorPosition(); x != 10 || y != 1 {
		t.Fatalf("expected backspace to move the cursor to (10, 1); got (%d, %d)", x, y)
	}
	if cons.chars[9] != ' ' {
		t.Fatalf("expected backspace to erase the last character of the wrapped line; got %q", cons.chars[9])
	}
}

func TestVtLineFeedHandling(t *testing.T) {
	cons := newMockConsole(80, 25)

	term := NewVT(4)
	term.AttachTo(cons)

	// Fill last line except the last column which will trigger a
	// line feed. Cursor position will be automatically clipped to
	// the viewport bounds
	term.SetCursorPosition(1, term.height+1)
	for i := uint32(0); i < term.width-1; i++ {
		term.WriteByte(byte('0' + (i % 10)))
	}

	if cons.scrollUpCount != 0 {
		t.Fatalf("expected console not to be scrolled; got %d scrolls", cons.scrollUpCount)
	}

	// Writing the last column wraps the cursor and scrolls the console.
	term.WriteByte('x')

	if cons.scrollUpCount != 1 {
		t.Fatalf("expected console to be scrolled up 1 time; got %d", cons.scrollUpCount)
	}

	if x, y := term.CursorPosition(); x != 1 || y != term.height {
		t.Fatalf("expected cursor at the start of the last line; got (%d, %d)", x, y)
	}

	// The last line should be cleared using the default colors.
	offset := (term.height - 1) * term.width
	for col := uint32(0); col < term.width; col++ {
		if cons.chars[offset+col] != ' ' || cons.fgAttrs[offset+col] != 7 || cons.bgAttrs[offset+col] != 0 {
			t.Fatalf("expected column %d of the last line to be cleared", col+1)
		}
	}

	// Line feeds that do not reach the bottom do not scroll.
	term.SetCursorPosition(1, 1)
	for i := uint32(1); i < term.height; i++ {
		term.lf(true)
	}
	if cons.scrollUpCount != 1 {
		t.Fatalf("expected no extra scroll; got %d scrolls", cons.scrollUpCount)
	}
}

func TestVtAttach(t *testing.T) {
	cons := newMockConsole(80, 25)
	cons.fg, cons.bg = 0x0c, 0x08

	term := NewVT(4)

	// AttachTo with a nil console should be a no-op
	term.AttachTo(nil)
	if term.width != 0 || term.height != 0 || term.cons != nil {
		t.Fatal("expected attaching a nil console to be a no-op")
	}

	term.AttachTo(cons)
	if term.width != cons.width ||
		term.height != cons.height ||
		term.curFg != 0x0c || term.curBg != 0x08 {
		t.Fatal("expected the terminal to initialize using the attached console info")
	}
}

func TestVtClear(t *testing.T) {
	cons := newMockConsole(80, 25)
	term := NewVT(4)

	// Clear without a console is a no-op
	term.Clear()

	term.AttachTo(cons)
	term.Write([]byte("hello\nworld"))
	term.Clear()

	for i, ch := range cons.chars {
		if ch != ' ' {
			t.Fatalf("expected cell %d to be cleared; got %q", i, ch)
		}
	}

	if x, y := term.CursorPosition(); x != 1 || y != 1 {
		t.Fatalf("expected the cursor at (1, 1); got (%d, %d)", x, y)
	}
}

func TestLineDiscipline(t *testing.T) {
	cons := newMockConsole(80, 25)
	term := NewVT(4)
	term.AttachTo(cons)

	for _, ch := range []byte("lsx\b") {
		term.Input(ch)
	}

	if term.LineReady() {
		t.Fatal("expected no line before enter is pressed")
	}
	if exp, got := "ls", string(cons.chars[:2]); got != exp || cons.chars[2] != ' ' {
		t.Fatalf("expected echoed input %q with the erased character cleared; got %q", exp, string(cons.chars[:3]))
	}

	var waits int
	wait := func() {
		waits++
		if waits == 2 {
			term.Input('\n')
		}
	}

	buf := make([]byte, 10)
	n := term.ReadLine(buf, func() {
		if !term.Blocked() {
			t.Error("expected the terminal to be blocked while waiting")
		}
		wait()
	})

	if exp, got := "ls\n", string(buf[:n]); got != exp {
		t.Fatalf("expected to read %q; got %q", exp, got)
	}
	if waits != 2 {
		t.Fatalf("expected the reader to wait twice; waited %d times", waits)
	}
	if term.Blocked() || term.LineReady() {
		t.Fatal("expected the line to be consumed and the reader unblocked")
	}

	t.Run("input after enter is dropped", func(t *testing.T) {
		term.Input('a')
		term.Input('\n')
		term.Input('b')

		n := term.ReadLine(buf, func() { t.Fatal("unexpected wait") })
		if exp, got := "a\n", string(buf[:n]); got != exp {
			t.Fatalf("expected to read %q; got %q", exp, got)
		}
	})

	t.Run("line is truncated to the buffer", func(t *testing.T) {
		for _, ch := range []byte("0123456789abc\n") {
			term.Input(ch)
		}

		small := make([]byte, 4)
		n := term.ReadLine(small, nil)
		if exp, got := "0123", string(small[:n]); got != exp {
			t.Fatalf("expected to read %q; got %q", exp, got)
		}
		if term.LineReady() {
			t.Fatal("expected the rest of the line to be discarded")
		}
	})

	t.Run("line buffer limit", func(t *testing.T) {
		for i := 0; i < 2*LineBufferSize; i++ {
			term.Input('x')
		}
		term.Input('\r')

		line := make([]byte, 2*LineBufferSize)
		n := term.ReadLine(line, nil)
		if n != LineBufferSize || line[n-1] != '\n' {
			t.Fatalf("expected a %d byte line ending in a newline; got %d bytes", LineBufferSize, n)
		}
	})

	t.Run("backspace on an empty line", func(t *testing.T) {
		term.SetCursorPosition(5, 5)
		term.Input('\b')
		if x, _ := term.CursorPosition(); x != 5 {
			t.Fatal("expected backspace on an empty line not to be echoed")
		}
	})
}

func TestVtRedraw(t *testing.T) {
	cons := newMockConsole(80, 25)
	term := NewVT(4)
	term.AttachTo(cons)

	term.Write([]byte("391OS> "))
	for _, ch := range []byte("cat") {
		term.Input(ch)
	}

	term.Redraw()
	if exp, got := "cat ", string(cons.chars[:4]); got != exp {
		t.Fatalf("expected redraw to echo the pending line %q; got %q", exp, got)
	}
	if x, y := term.CursorPosition(); x != 4 || y != 1 {
		t.Fatalf("expected the cursor after the pending line; got (%d, %d)", x, y)
	}
}

func TestVTDriverInterface(t *testing.T) {
	var dev device.Driver = NewBank(3, DefaultTabWidth)

	var buf bytes.Buffer
	if err := dev.DriverInit(&buf); err != nil {
		t.Fatal(err)
	}

	if exp, got := "3 virtual terminals\n", buf.String(); got != exp {
		t.Fatalf("expected init output %q; got %q", exp, got)
	}

	if dev.DriverName() == "" {
		t.Fatal("DriverName() returned an empty string")
	}

	if major, minor, patch := dev.DriverVersion(); major+minor+patch == 0 {
		t.Fatal("DriverVersion() returned an invalid version number")
	}
}

func TestVTProbe(t *testing.T) {
	if drv := probeForVT(&device.Hardware{}); drv != nil {
		t.Fatal("expected probeForVT without terminals to return no driver")
	}

	drv := probeForVT(&device.Hardware{Terminals: 3})
	if drv == nil {
		t.Fatal("expected probeForVT to return a driver")
	}

	if got := len(drv.(*Bank).VTs); got != 3 {
		t.Fatalf("expected 3 terminals; got %d", got)
	}
}

type mockConsole struct {
	width, height    uint32
	fg, bg           uint8
	chars            []uint8
	fgAttrs          []uint8
	bgAttrs          []uint8
	cursorX, cursorY uint32
	bytesWritten     int
	scrollUpCount    int
	scrollDownCount  int
}

func newMockConsole(w, h uint32) *mockConsole {
	return &mockConsole{
		width:   w,
		height:  h,
		fg:      7,
		bg:      0,
		chars:   make([]uint8, w*h),
		fgAttrs: make([]uint8, w*h),
		bgAttrs: make([]uint8, w*h),
	}
}

func (cons *mockConsole) Dimensions(_ console.Dimension) (uint32, uint32) {
	return cons.width, cons.height
}

func (cons *mockConsole) DefaultColors() (uint8, uint8) {
	return cons.fg, cons.bg
}

func (cons *mockConsole) Fill(x, y, width, height uint32, fg, bg uint8) {
	yEnd := y + height - 1
	xEnd := x + width - 1

	for fy := y; fy <= yEnd; fy++ {
		offset := ((fy - 1) * cons.width) + (x - 1)
		for fx := x; fx <= xEnd; fx, offset = fx+1, offset+1 {
			cons.chars[offset] = ' '
			cons.fgAttrs[offset] = fg
			cons.bgAttrs[offset] = bg
		}
	}
}

func (cons *mockConsole) Scroll(dir console.ScrollDir, lines uint32) {
	switch dir {
	case console.ScrollDirUp:
		cons.scrollUpCount++
	case console.ScrollDirDown:
		cons.scrollDownCount++
	}
}

func (cons *mockConsole) Write(b byte, fg, bg uint8, x, y uint32) {
	offset := ((y - 1) * cons.width) + (x - 1)
	cons.chars[offset] = b
	cons.fgAttrs[offset] = fg
	cons.bgAttrs[offset] = bg
	cons.bytesWritten++
}

func (cons *mockConsole) SetCursor(x, y uint32) {
	cons.cursorX, cons.cursorY = x, y
}
