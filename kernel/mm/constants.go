package mm

const (
	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a page number (shift right by PageShift)
	// and vice-versa.
	PageShift = uintptr(12)

	// PageSize defines the system's page size in bytes.
	PageSize = uintptr(1 << PageShift)

	// LargePageShift is equal to log2(LargePageSize).
	LargePageShift = uintptr(22)

	// LargePageSize is the size of a page mapped directly by a page
	// directory entry.
	LargePageSize = uintptr(1 << LargePageShift)
)

// Physical memory layout.
const (
	// VideoMemory is the physical address of the text-mode framebuffer the
	// display hardware scans out.
	VideoMemory = uintptr(0xb8000)

	// VideoBackingBase is the first of the per-terminal pages that hold the
	// contents of terminals that are not visible.
	VideoBackingBase = VideoMemory + PageSize

	// KernelBase is the start of the kernel image, mapped as a single large
	// page.
	KernelBase = uintptr(4 << 20)

	// KernelPageDirectory and the two page tables live inside the kernel
	// image.
	KernelPageDirectory = KernelBase + 0x10000
	LowPageTable        = KernelPageDirectory + PageSize
	VidmapPageTable     = LowPageTable + PageSize

	// BootInfoBase is where the boot loader places the boot information
	// block.
	BootInfoBase = KernelBase + 0x20000

	// ModuleBase is where the boot loader copies boot modules. Modules
	// must end below ModuleLimit, the bottom of the kernel stacks.
	ModuleBase  = KernelBase + 0x100000
	ModuleLimit = ProgramBase - 0x10000

	// ProgramBase is the physical address of the first program frame. It
	// is also the top of the kernel stacks that grow down from it.
	ProgramBase = uintptr(8 << 20)

	// KernelStackSize is the size of the kernel stack reserved per
	// process.
	KernelStackSize = uintptr(8 << 10)

	// PhysicalMemorySize is the amount of installed memory.
	PhysicalMemorySize = uintptr(32 << 20)
)
