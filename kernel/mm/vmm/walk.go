// Package vmm implements 32-bit two-level paging over simulated physical
// memory: page table entries, an MMU with a TLB and the kernel address space
// whose program slot is repointed on every transfer of control.
package vmm

import (
	"multiterm/kernel"
	"multiterm/kernel/mm"
)

const (
	// pageLevels is the number of paging levels of 32-bit non-PAE paging.
	pageLevels = 2

	// entriesPerTable is the number of entries in a page directory or
	// page table.
	entriesPerTable = 1024

	// entrySize is the size of a page directory or page table entry.
	entrySize = 4
)

// pageLevelShifts defines the shift required to access each page table
// component of a virtual address.
var pageLevelShifts = [pageLevels]uint8{22, 12}

// tableIndex returns the index inside the table of the given level that
// virtAddr selects.
func tableIndex(virtAddr uintptr, level uint8) uintptr {
	return (virtAddr >> pageLevelShifts[level]) & (entriesPerTable - 1)
}

// PageOffset returns the offset within the 4K page specified by a virtual
// address.
func PageOffset(virtAddr uintptr) uintptr {
	return virtAddr & (mm.PageSize - 1)
}

// pageTableWalker is a function that can be passed to the walk method. The
// function receives the current page level, the physical address of the
// entry and its value. It returns true to continue to the next level.
type pageTableWalker func(pteLevel uint8, entryAddr uintptr, pte pageTableEntry) bool

// walk performs a page table walk for the given virtual address starting at
// the page directory at pdtAddr. A directory entry that maps a large page ends
// the walk at level 0.
func walk(mem *mm.Memory, pdtAddr, virtAddr uintptr, walkFn pageTableWalker) *kernel.Error {
	tableAddr := pdtAddr
	for level := uint8(0); level < pageLevels; level++ {
		entryAddr := tableAddr + tableIndex(virtAddr, level)*entrySize
		raw, err := mem.ReadUint32(entryAddr)
		if err != nil {
			return err
		}

		pte := pageTableEntry(raw)
		if !walkFn(level, entryAddr, pte) {
			return nil
		}

		if level == 0 && pte.HasFlags(FlagHugePage) {
			return nil
		}

		tableAddr = pte.Frame().Address()
	}

	return nil
}
