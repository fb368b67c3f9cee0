package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/fatih/color"
)

// framebuffer is the scanned out text display.
type framebuffer interface {
	Snapshot() []uint16
	Cursor() (x, y uint32, enabled bool)
}

// vgaPalette maps the 16 VGA text colours to their ANSI foreground
// attribute. Background attributes are offset by 10.
var vgaPalette = [16]color.Attribute{
	color.FgBlack, color.FgBlue, color.FgGreen, color.FgCyan,
	color.FgRed, color.FgMagenta, color.FgYellow, color.FgWhite,
	color.FgHiBlack, color.FgHiBlue, color.FgHiGreen, color.FgHiCyan,
	color.FgHiRed, color.FgHiMagenta, color.FgHiYellow, color.FgHiWhite,
}

const bgOffset = color.BgBlack - color.FgBlack

// renderer draws the framebuffer on an ANSI terminal. Frames identical to
// the previous one are not redrawn.
type renderer struct {
	out     io.Writer
	fb      framebuffer
	columns int

	// colorize selects whether colour escape sequences are written
	// regardless of what the output is attached to.
	colorize bool

	palette map[uint8]*color.Color
	last    []uint16
	lastCur [3]uint32
}

func newRenderer(out io.Writer, fb framebuffer, columns int, colorize bool) *renderer {
	return &renderer{
		out:      out,
		fb:       fb,
		columns:  columns,
		colorize: colorize,
		palette:  make(map[uint8]*color.Color),
	}
}

func (r *renderer) colorFor(attr uint8) *color.Color {
	c, ok := r.palette[attr]
	if !ok {
		c = color.New(vgaPalette[attr&0xf], vgaPalette[attr>>4]+bgOffset)
		if r.colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		r.palette[attr] = c
	}
	return c
}

// render draws the current frame and reports whether anything changed.
func (r *renderer) render() (bool, error) {
	cells := r.fb.Snapshot()
	x, y, enabled := r.fb.Cursor()
	cur := [3]uint32{x, y, 0}
	if enabled {
		cur[2] = 1
	}

	if cur == r.lastCur && equalCells(cells, r.last) {
		return false, nil
	}
	r.last, r.lastCur = cells, cur

	var buf bytes.Buffer
	buf.WriteString("\x1b[?25l\x1b[H")
	for off := 0; off+r.columns <= len(cells); off += r.columns {
		if off > 0 {
			buf.WriteString("\r\n")
		}
		r.drawRow(&buf, cells[off:off+r.columns])
	}

	if enabled {
		fmt.Fprintf(&buf, "\x1b[%d;%dH\x1b[?25h", y, x)
	}

	_, err := r.out.Write(buf.Bytes())
	return true, err
}

// drawRow writes a row as runs of cells sharing an attribute.
func (r *renderer) drawRow(w io.Writer, row []uint16) {
	text := make([]byte, 0, len(row))
	for start := 0; start < len(row); start += len(text) {
		attr := uint8(row[start] >> 8)

		text = text[:0]
		for _, cell := range row[start:] {
			if uint8(cell>>8) != attr {
				break
			}
			text = append(text, printable(byte(cell)))
		}

		io.WriteString(w, r.colorFor(attr).Sprint(string(text)))
	}
}

func printable(ch byte) byte {
	if ch < 0x20 || ch > 0x7e {
		return ' '
	}
	return ch
}

func equalCells(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
