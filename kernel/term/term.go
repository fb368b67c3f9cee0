// Package term coordinates the terminals that share the display. Exactly one
// terminal is visible and drawn into the scanned out framebuffer; the others
// draw into their own backing pages. Independently of that, exactly one
// terminal is scheduled: its processes own the CPU and kernel console output
// goes to it.
package term

import (
	"github.com/hashicorp/go-hclog"

	"multiterm/device/keyboard"
	"multiterm/device/tty"
	"multiterm/device/video/console"
	"multiterm/kernel"
	"multiterm/kernel/mm"
	"multiterm/kernel/mm/vmm"
	"multiterm/kernel/proc"
)

// NumTerminals is the number of terminals multiplexed on the display.
const NumTerminals = 3

var (
	// ErrBadTerminal is returned for terminal numbers out of range.
	ErrBadTerminal = &kernel.Error{Module: "term", Message: "no such terminal"}

	// ErrAlreadyVisible is returned when switching to the visible terminal.
	ErrAlreadyVisible = &kernel.Error{Module: "term", Message: "terminal already visible"}

	errTooFewVTs = &kernel.Error{Module: "term", Message: "not enough virtual terminals"}
)

// Text attributes of each terminal.
var colours = [NumTerminals]struct{ fg, bg uint8 }{
	{0x0, 0xf},
	{0xc, 0x8},
	{0xa, 0x9},
}

// Slot is a terminal.
type Slot struct {
	// Root is the process started by the scheduler for this terminal or
	// proc.NoID until then.
	Root proc.ID

	VT      *tty.VT
	Console *console.VgaTextConsole
}

// Coordinator owns the terminal slots.
type Coordinator struct {
	mem     *mm.Memory
	display *console.VgaTextDisplay
	as      *vmm.AddressSpace
	procs   *proc.Store
	log     hclog.Logger

	slots     [NumTerminals]Slot
	visible   int
	scheduled int
}

// BackingPage returns the physical address of the page that holds the
// contents of a terminal while it is not visible.
func BackingPage(slot int) uintptr {
	return mm.VideoBackingBase + uintptr(slot)*mm.PageSize
}

// New attaches the first NumTerminals VTs to consoles on display and clears
// every terminal. Terminal 0 starts visible and scheduled.
func New(display *console.VgaTextDisplay, vts []*tty.VT, mem *mm.Memory, as *vmm.AddressSpace, procs *proc.Store, log hclog.Logger) (*Coordinator, *kernel.Error) {
	if len(vts) < NumTerminals {
		return nil, errTooFewVTs
	}

	c := &Coordinator{
		mem:     mem,
		display: display,
		as:      as,
		procs:   procs,
		log:     log,
	}

	for i := range c.slots {
		cons := display.NewConsole(c.DisplayPage(i), colours[i].fg, colours[i].bg)
		vts[i].AttachTo(cons)
		vts[i].Clear()

		c.slots[i] = Slot{Root: proc.NoID, VT: vts[i], Console: cons}
	}

	display.EnableCursor(true)
	return c, nil
}

// Visible returns the visible terminal.
func (c *Coordinator) Visible() int {
	return c.visible
}

// Scheduled returns the scheduled terminal.
func (c *Coordinator) Scheduled() int {
	return c.scheduled
}

// VT returns the virtual terminal of slot.
func (c *Coordinator) VT(slot int) *tty.VT {
	return c.slots[slot].VT
}

// Root returns the root process of slot.
func (c *Coordinator) Root(slot int) proc.ID {
	return c.slots[slot].Root
}

// SetRoot records the root process of slot.
func (c *Coordinator) SetRoot(slot int, id proc.ID) {
	c.slots[slot].Root = id
}

// DisplayPage returns the physical page slot currently draws into.
func (c *Coordinator) DisplayPage(slot int) uintptr {
	if slot == c.visible {
		return c.display.Framebuffer()
	}
	return BackingPage(slot)
}

// SetScheduled records the terminal whose processes own the CPU. The
// hardware cursor is only shown while the scheduled terminal is visible.
func (c *Coordinator) SetScheduled(slot int) {
	c.scheduled = slot
	c.display.EnableCursor(c.visible == c.scheduled)
}

// Switch makes terminal n visible. The framebuffer contents are banked into
// the backing page of the outgoing terminal, and the display mappings of both
// terminals' processes follow their pages.
func (c *Coordinator) Switch(n int) *kernel.Error {
	switch {
	case n < 0 || n >= NumTerminals:
		return ErrBadTerminal
	case n == c.visible:
		return ErrAlreadyVisible
	}

	var (
		old  = c.visible
		live = c.display.Framebuffer()
		size = c.display.FramebufferSize()
	)

	if err := c.mem.Memcopy(live, BackingPage(old), size); err != nil {
		return err
	}
	if err := c.mem.Memcopy(BackingPage(n), live, size); err != nil {
		return err
	}

	c.visible = n
	c.slots[old].Console.Retarget(BackingPage(old))
	c.slots[n].Console.Retarget(live)

	c.repointVidmaps(old)
	c.repointVidmaps(n)
	c.as.Flush()

	c.display.EnableCursor(c.visible == c.scheduled)
	c.log.Debug("switched terminal", "from", old, "to", n)
	return nil
}

func (c *Coordinator) repointVidmaps(slot int) {
	page := c.DisplayPage(slot)
	c.procs.Chain(c.slots[slot].Root, func(p *proc.Process) bool {
		if p.Vidmapped {
			c.as.RepointVidmap(int(p.ID), page)
		}
		return true
	})
}

// HandleKey routes a keyboard event. Characters and clear requests go to the
// visible terminal.
func (c *Coordinator) HandleKey(ev keyboard.Event) {
	switch ev.Kind {
	case keyboard.EventChar:
		c.slots[c.visible].VT.Input(ev.Char)
	case keyboard.EventClear:
		c.slots[c.visible].VT.Redraw()
	case keyboard.EventSwitch:
		if err := c.Switch(ev.Terminal); err != nil && err != ErrAlreadyVisible {
			c.log.Warn("terminal switch failed", "terminal", ev.Terminal, "err", err)
		}
	}
}

// Write implements io.Writer by printing to the scheduled terminal. It is
// used as the kernel console sink.
func (c *Coordinator) Write(p []byte) (int, error) {
	return c.slots[c.scheduled].VT.Write(p)
}
