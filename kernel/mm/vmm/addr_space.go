package vmm

import (
	"multiterm/abi"
	"multiterm/kernel"
	"multiterm/kernel/mm"
)

const (
	// ProgramPDE is the page directory slot of the program page. Pointing
	// it at a different frame switches which program user code sees.
	ProgramPDE = uintptr(abi.UserBase) >> mm.LargePageShift

	// VidmapPDE is the page directory slot of the page table that holds
	// the per-process display mappings.
	VidmapPDE = uintptr(abi.VidmapBase) >> mm.LargePageShift

	programFlags = FlagPresent | FlagRW | FlagUserAccessible | FlagHugePage
	vidmapFlags  = FlagPresent | FlagRW | FlagUserAccessible
)

var (
	errBadVidmapSlot = &kernel.Error{Module: "vmm", Message: "vidmap slot out of range"}
	errUnaligned     = &kernel.Error{Module: "vmm", Message: "frame address is not aligned"}
)

// AddressSpace owns the single page directory shared by every process. The
// kernel half is fixed at boot: the low 4M are mapped with 4K pages covering
// the text framebuffer and the terminal backing pages, and the kernel image
// is a single global large page. Each transfer of control only rewrites the
// program slot, and display mappings are added per process.
type AddressSpace struct {
	mem *mm.Memory
	mmu *MMU

	vidmapSlots int
}

// NewAddressSpace builds the kernel page directory in physical memory and
// loads it into the MMU. vidmapSlots is the number of per-process display
// mappings, one per process id. backingPages is the number of terminal
// backing pages that follow the framebuffer.
func NewAddressSpace(mem *mm.Memory, mmu *MMU, vidmapSlots, backingPages int) (*AddressSpace, *kernel.Error) {
	if vidmapSlots > entriesPerTable {
		return nil, errBadVidmapSlot
	}

	as := &AddressSpace{mem: mem, mmu: mmu, vidmapSlots: vidmapSlots}

	for _, table := range []uintptr{mm.KernelPageDirectory, mm.LowPageTable, mm.VidmapPageTable} {
		if err := mem.Memset(table, 0, mm.PageSize); err != nil {
			return nil, err
		}
	}

	// Framebuffer and backing pages, identity mapped for the kernel.
	for i := 0; i <= backingPages; i++ {
		addr := mm.VideoMemory + uintptr(i)*mm.PageSize
		if err := as.setEntry(mm.LowPageTable, tableIndex(addr, 1), mm.FrameFromAddress(addr), FlagPresent|FlagRW); err != nil {
			return nil, err
		}
	}

	entries := []struct {
		index uintptr
		frame mm.Frame
		flags PageTableEntryFlag
	}{
		{0, mm.FrameFromAddress(mm.LowPageTable), FlagPresent | FlagRW},
		{tableIndex(mm.KernelBase, 0), mm.FrameFromAddress(mm.KernelBase), FlagPresent | FlagRW | FlagHugePage | FlagGlobal},
		{VidmapPDE, mm.FrameFromAddress(mm.VidmapPageTable), vidmapFlags},
	}
	for _, e := range entries {
		if err := as.setEntry(mm.KernelPageDirectory, e.index, e.frame, e.flags); err != nil {
			return nil, err
		}
	}

	mmu.SwitchPDT(mm.KernelPageDirectory)
	return as, nil
}

func (as *AddressSpace) setEntry(table, index uintptr, frame mm.Frame, flags PageTableEntryFlag) *kernel.Error {
	var pte pageTableEntry
	pte.SetFrame(frame)
	pte.SetFlags(flags)
	return as.mem.WriteUint32(table+index*entrySize, uint32(pte))
}

func (as *AddressSpace) entry(table, index uintptr) pageTableEntry {
	raw, _ := as.mem.ReadUint32(table + index*entrySize)
	return pageTableEntry(raw)
}

// MMU returns the MMU the address space is loaded into.
func (as *AddressSpace) MMU() *MMU {
	return as.mmu
}

// MapProgram points the program slot at the 4M physical frame starting at
// physAddr and flushes the TLB.
func (as *AddressSpace) MapProgram(physAddr uintptr) *kernel.Error {
	if physAddr&(mm.LargePageSize-1) != 0 {
		return errUnaligned
	}

	pte := pageTableEntry(uint32(physAddr))
	pte.SetFlags(programFlags)
	if err := as.mem.WriteUint32(mm.KernelPageDirectory+ProgramPDE*entrySize, uint32(pte)); err != nil {
		return err
	}

	as.mmu.FlushTLB()
	return nil
}

// ProgramFrame returns the physical address the program slot points at and
// whether the slot is present.
func (as *AddressSpace) ProgramFrame() (uintptr, bool) {
	pte := as.entry(mm.KernelPageDirectory, ProgramPDE)
	return pte.LargeFrameAddress(), pte.HasFlags(FlagPresent)
}

// VidmapAddress returns the user virtual address of a display mapping slot.
func VidmapAddress(slot int) uint32 {
	return abi.VidmapBase + uint32(slot)*uint32(mm.PageSize)
}

// MapVidmap maps display slot to the physical page at physAddr for user
// access and returns the virtual address of the mapping.
func (as *AddressSpace) MapVidmap(slot int, physAddr uintptr) (uint32, *kernel.Error) {
	if slot < 0 || slot >= as.vidmapSlots {
		return 0, errBadVidmapSlot
	}

	virt := VidmapAddress(slot)
	if err := as.setEntry(mm.VidmapPageTable, uintptr(slot), mm.FrameFromAddress(physAddr), vidmapFlags); err != nil {
		return 0, err
	}

	as.mmu.FlushTLBEntry(uintptr(virt))
	return virt, nil
}

// UnmapVidmap removes the display mapping of slot.
func (as *AddressSpace) UnmapVidmap(slot int) {
	if slot < 0 || slot >= as.vidmapSlots {
		return
	}

	as.mem.WriteUint32(mm.VidmapPageTable+uintptr(slot)*entrySize, 0)
	as.mmu.FlushTLBEntry(uintptr(VidmapAddress(slot)))
}

// VidmapTarget returns the physical page a display slot maps and whether it
// is mapped at all.
func (as *AddressSpace) VidmapTarget(slot int) (uintptr, bool) {
	if slot < 0 || slot >= as.vidmapSlots {
		return 0, false
	}

	pte := as.entry(mm.VidmapPageTable, uintptr(slot))
	return pte.Frame().Address(), pte.HasFlags(FlagPresent)
}

// RepointVidmap changes the physical page of an existing display mapping. It
// returns false if slot is not mapped. The caller is expected to flush the
// TLB once all mappings are updated.
func (as *AddressSpace) RepointVidmap(slot int, physAddr uintptr) bool {
	if _, mapped := as.VidmapTarget(slot); !mapped {
		return false
	}

	pte := as.entry(mm.VidmapPageTable, uintptr(slot))
	pte.SetFrame(mm.FrameFromAddress(physAddr))
	as.mem.WriteUint32(mm.VidmapPageTable+uintptr(slot)*entrySize, uint32(pte))
	return true
}

// Flush invalidates every cached translation.
func (as *AddressSpace) Flush() {
	as.mmu.FlushTLB()
}

// CopyIn copies len(p) bytes from virtual address virt into p, translating
// every page through the MMU with the requested access.
func (as *AddressSpace) CopyIn(virt uint32, p []byte, access Access) *kernel.Error {
	return as.copy(virt, p, access&^AccessWrite, func(phys uintptr, chunk []byte) *kernel.Error {
		return as.mem.Read(phys, chunk)
	})
}

// CopyOut copies p to virtual address virt.
func (as *AddressSpace) CopyOut(virt uint32, p []byte, access Access) *kernel.Error {
	return as.copy(virt, p, access|AccessWrite, func(phys uintptr, chunk []byte) *kernel.Error {
		return as.mem.Write(phys, chunk)
	})
}

func (as *AddressSpace) copy(virt uint32, p []byte, access Access, fn func(uintptr, []byte) *kernel.Error) *kernel.Error {
	for off := 0; off < len(p); {
		addr := uintptr(virt) + uintptr(off)
		if addr > 0xffffffff {
			return as.mmu.fault(addr&0xffffffff, access, 0, ErrInvalidMapping)
		}

		phys, err := as.mmu.Translate(addr, access)
		if err != nil {
			return err
		}

		count := int(mm.PageSize - PageOffset(addr))
		if count > len(p)-off {
			count = len(p) - off
		}

		if err = fn(phys, p[off:off+count]); err != nil {
			return err
		}
		off += count
	}

	return nil
}
