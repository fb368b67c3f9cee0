package tty

// LineBufferSize is the capacity of the input line including the terminating
// newline.
const LineBufferSize = 128

// lineDiscipline collects keyboard input into a line. A line becomes
// readable once a newline is entered; until it is consumed further input is
// dropped.
type lineDiscipline struct {
	buf   [LineBufferSize]byte
	len   int
	ready bool

	// blocked is set while a reader waits for a line.
	blocked bool
}

// Input feeds a character typed on the keyboard to the terminal's line
// discipline and echoes it.
func (t *VT) Input(ch byte) {
	l := &t.ldisc
	if l.ready {
		return
	}

	switch ch {
	case '\r', '\n':
		l.buf[l.len] = '\n'
		l.len++
		l.ready = true
		t.Write([]byte{'\n'})
	case '\b':
		if l.len > 0 {
			l.len--
			t.Write([]byte{'\b'})
		}
	default:
		if l.len < LineBufferSize-1 {
			l.buf[l.len] = ch
			l.len++
			t.Write([]byte{ch})
		}
	}
}

// Redraw clears the terminal and echoes the pending input line.
func (t *VT) Redraw() {
	t.Clear()
	if !t.ldisc.ready {
		t.Write(t.ldisc.buf[:t.ldisc.len])
	}
}

// LineReady returns true if a complete line is waiting to be read.
func (t *VT) LineReady() bool {
	return t.ldisc.ready
}

// Blocked returns true while a reader is waiting for a line.
func (t *VT) Blocked() bool {
	return t.ldisc.blocked
}

// ReadLine copies the next input line, including its trailing newline, to p
// and discards the line. Bytes that do not fit p are dropped. While no line is
// available, ReadLine marks the terminal as blocked and calls wait, which is
// expected to return after the next interrupt has been serviced.
func (t *VT) ReadLine(p []byte, wait func()) int {
	l := &t.ldisc
	for !l.ready {
		l.blocked = true
		wait()
	}
	l.blocked = false

	n := copy(p, l.buf[:l.len])
	l.len, l.ready = 0, false
	return n
}
