// Package mm describes physical memory: frame and page numbering, the fixed
// physical layout the kernel relies on and the installed memory itself.
package mm

// Frame is the index of a 4K physical frame.
type Frame uintptr

// Address returns the physical address of the first byte of the frame.
func (f Frame) Address() uintptr {
	return uintptr(f) << PageShift
}

// FrameFromAddress returns the frame that contains physAddr.
func FrameFromAddress(physAddr uintptr) Frame {
	return Frame(physAddr >> PageShift)
}

// LargeFrame is the index of a 4M physical frame mapped by a single page
// directory entry.
type LargeFrame uintptr

// Address returns the physical address of the first byte of the frame.
func (f LargeFrame) Address() uintptr {
	return uintptr(f) << LargePageShift
}

// LargeFrameFromAddress returns the large frame that contains physAddr.
func LargeFrameFromAddress(physAddr uintptr) LargeFrame {
	return LargeFrame(physAddr >> LargePageShift)
}

// Page is the index of a 4K virtual page.
type Page uintptr

// Address returns the virtual address of the first byte of the page.
func (p Page) Address() uintptr {
	return uintptr(p) << PageShift
}

// PageFromAddress returns the page that contains virtAddr.
func PageFromAddress(virtAddr uintptr) Page {
	return Page(virtAddr >> PageShift)
}
