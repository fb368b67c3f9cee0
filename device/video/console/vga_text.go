package console

import (
	"io"

	"multiterm/kernel"
	"multiterm/kernel/kfmt"
	"multiterm/kernel/mm"
	"multiterm/kernel/sync"
)

const (
	// numColors is the number of EGA colors supported by text mode.
	numColors = 16

	// The default attribute is light gray text on a black background.
	defaultFg = 7
	defaultBg = 0
)

// VgaTextDisplay is the display adapter for an EGA-compatible 80x25 text mode
// (VGA mode 0x3). The adapter scans out the framebuffer at fbPhysAddr and owns
// the CRT controller that draws the hardware cursor.
//
// Each character in the framebuffer is represented using two bytes, a byte
// for the character ASCII code and a byte that encodes the foreground and
// background colors (4 bits for each).
type VgaTextDisplay struct {
	mem *mm.Memory

	width  uint32
	height uint32

	fbPhysAddr uintptr

	crtcLock      sync.Spinlock
	cursorOffset  uint32
	cursorEnabled bool
}

// NewVgaTextDisplay creates a text mode display adapter that scans out the
// framebuffer at fbPhysAddr.
func NewVgaTextDisplay(mem *mm.Memory, columns, rows uint32, fbPhysAddr uintptr) *VgaTextDisplay {
	return &VgaTextDisplay{
		mem:        mem,
		width:      columns,
		height:     rows,
		fbPhysAddr: fbPhysAddr,
	}
}

// Dimensions returns the display width and height in the specified dimension.
func (d *VgaTextDisplay) Dimensions(dim Dimension) (uint32, uint32) {
	switch dim {
	case Characters:
		return d.width, d.height
	default:
		return d.width * 8, d.height * 16
	}
}

// Framebuffer returns the physical address of the scanned out framebuffer.
func (d *VgaTextDisplay) Framebuffer() uintptr {
	return d.fbPhysAddr
}

// FramebufferSize returns the size of a framebuffer page in bytes.
func (d *VgaTextDisplay) FramebufferSize() uintptr {
	return uintptr(d.width * d.height * 2)
}

// EnableCursor shows or hides the hardware cursor.
func (d *VgaTextDisplay) EnableCursor(enabled bool) {
	d.crtcLock.Acquire()
	d.cursorEnabled = enabled
	d.crtcLock.Release()
}

// Cursor returns the 1-based hardware cursor position and whether the
// cursor is shown.
func (d *VgaTextDisplay) Cursor() (x, y uint32, enabled bool) {
	d.crtcLock.Acquire()
	defer d.crtcLock.Release()
	return d.cursorOffset%d.width + 1, d.cursorOffset/d.width + 1, d.cursorEnabled
}

func (d *VgaTextDisplay) setCursorOffset(offset uint32) {
	d.crtcLock.Acquire()
	d.cursorOffset = offset
	d.crtcLock.Release()
}

// Snapshot returns the cells of the scanned out framebuffer. It may be
// called from any goroutine.
func (d *VgaTextDisplay) Snapshot() []uint16 {
	raw := make([]byte, d.FramebufferSize())
	d.mem.Read(d.fbPhysAddr, raw)

	cells := make([]uint16, len(raw)/2)
	for i := range cells {
		cells[i] = uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
	}
	return cells
}

// NewConsole returns a console that draws into the framebuffer page at
// fbPhysAddr using the specified default colors.
func (d *VgaTextDisplay) NewConsole(fbPhysAddr uintptr, fg, bg uint8) *VgaTextConsole {
	return &VgaTextConsole{
		display:    d,
		fbPhysAddr: fbPhysAddr,
		defaultFg:  fg & (numColors - 1),
		defaultBg:  bg & (numColors - 1),
		clearChar:  uint16(' '),
	}
}

// DriverName returns the name of this driver.
func (d *VgaTextDisplay) DriverName() string {
	return "vga_text_console"
}

// DriverVersion returns the version of this driver.
func (d *VgaTextDisplay) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit clears the scanned out framebuffer.
func (d *VgaTextDisplay) DriverInit(w io.Writer) *kernel.Error {
	cons := d.NewConsole(d.fbPhysAddr, defaultFg, defaultBg)
	cons.Fill(1, 1, d.width, d.height, defaultFg, defaultBg)

	kfmt.Fprintf(w, "%dx%d text mode, framebuffer at 0x%x\n", d.width, d.height, d.fbPhysAddr)
	return nil
}

// VgaTextConsole implements a console on top of a VgaTextDisplay. The
// console draws into a framebuffer page that can be retargeted at runtime:
// it either points at the scanned out framebuffer or at a backing page that
// holds the contents while the console is not visible.
//
// The default settings for the console are:
//   - the colors passed to NewConsole.
//   - space as the clear character
type VgaTextConsole struct {
	display *VgaTextDisplay

	fbPhysAddr uintptr

	defaultFg uint8
	defaultBg uint8
	clearChar uint16

	cursorX, cursorY uint32
}

// Dimensions returns the console width and height in the specified dimension.
func (cons *VgaTextConsole) Dimensions(dim Dimension) (uint32, uint32) {
	return cons.display.Dimensions(dim)
}

// DefaultColors returns the default foreground and background colors
// used by this console.
func (cons *VgaTextConsole) DefaultColors() (fg uint8, bg uint8) {
	return cons.defaultFg, cons.defaultBg
}

// Framebuffer returns the physical address of the page the console draws
// into.
func (cons *VgaTextConsole) Framebuffer() uintptr {
	return cons.fbPhysAddr
}

// Live returns true if the console draws into the scanned out framebuffer.
func (cons *VgaTextConsole) Live() bool {
	return cons.fbPhysAddr == cons.display.fbPhysAddr
}

// Retarget points the console at another framebuffer page. The caller is
// responsible for copying the page contents. If the console becomes live,
// the hardware cursor follows its cursor.
func (cons *VgaTextConsole) Retarget(fbPhysAddr uintptr) {
	cons.fbPhysAddr = fbPhysAddr
	cons.syncCursor()
}

// SetCursor moves the console cursor to (x, y).
func (cons *VgaTextConsole) SetCursor(x, y uint32) {
	cons.cursorX, cons.cursorY = x, y
	cons.syncCursor()
}

func (cons *VgaTextConsole) syncCursor() {
	if !cons.Live() || cons.cursorX < 1 || cons.cursorY < 1 {
		return
	}
	cons.display.setCursorOffset((cons.cursorY-1)*cons.display.width + (cons.cursorX - 1))
}

func (cons *VgaTextConsole) cellAddr(offset uint32) uintptr {
	return cons.fbPhysAddr + uintptr(offset)*2
}

// Fill sets the contents of the specified rectangular region to the requested
// color. Both x and y coordinates are 1-based.
func (cons *VgaTextConsole) Fill(x, y, width, height uint32, fg, bg uint8) {
	var (
		w, h                 = cons.display.width, cons.display.height
		clr                  = (((uint16(bg) << 4) | uint16(fg)) << 8) | cons.clearChar
		rowOffset, colOffset uint32
	)

	// clip rectangle
	if x == 0 {
		x = 1
	} else if x >= w {
		x = w
	}

	if y == 0 {
		y = 1
	} else if y >= h {
		y = h
	}

	if x+width-1 > w {
		width = w - x + 1
	}

	if y+height-1 > h {
		height = h - y + 1
	}

	row := make([]byte, width*2)
	for colOffset = 0; colOffset < width; colOffset++ {
		row[2*colOffset] = byte(clr)
		row[2*colOffset+1] = byte(clr >> 8)
	}

	rowOffset = ((y - 1) * w) + (x - 1)
	for ; height > 0; height, rowOffset = height-1, rowOffset+w {
		cons.display.mem.Write(cons.cellAddr(rowOffset), row)
	}
}

// Scroll the console contents to the specified direction. The caller
// is responsible for updating (e.g. clear or replace) the contents of
// the region that was scrolled.
func (cons *VgaTextConsole) Scroll(dir ScrollDir, lines uint32) {
	w, h := cons.display.width, cons.display.height
	if lines == 0 || lines > h {
		return
	}

	var (
		offset = lines * w
		count  = uintptr((h - lines) * w * 2)
	)

	switch dir {
	case ScrollDirUp:
		cons.display.mem.Memcopy(cons.cellAddr(offset), cons.cellAddr(0), count)
	case ScrollDirDown:
		cons.display.mem.Memcopy(cons.cellAddr(0), cons.cellAddr(offset), count)
	}
}

// Write a char to the specified location. If fg or bg exceed the supported
// colors for this console, they will be set to their default value. Both x and
// y coordinates are 1-based
func (cons *VgaTextConsole) Write(ch byte, fg, bg uint8, x, y uint32) {
	w, h := cons.display.width, cons.display.height
	if x < 1 || x > w || y < 1 || y > h {
		return
	}

	if fg >= numColors {
		fg = cons.defaultFg
	}
	if bg >= numColors {
		bg = cons.defaultBg
	}

	cons.display.mem.WriteUint16(cons.cellAddr(((y-1)*w)+(x-1)), (((uint16(bg)<<4)|uint16(fg))<<8)|uint16(ch))
}
