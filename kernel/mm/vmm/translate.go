package vmm

import (
	"multiterm/kernel"
	"multiterm/kernel/mm"
)

var (
	// ErrInvalidMapping is returned when trying to lookup a virtual memory address that is not yet mapped.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	// ErrProtection is returned when a mapping exists but does not allow
	// the requested access.
	ErrProtection = &kernel.Error{Module: "vmm", Message: "page protection violation"}
)

// Access describes the kind of memory access being translated.
type Access uint8

const (
	// AccessWrite is set for stores.
	AccessWrite Access = 1 << iota

	// AccessUser is set for accesses made from ring 3.
	AccessUser
)

// Page fault error code bits reported through FaultCode.
const (
	FaultProtection = 1 << 0
	FaultWrite      = 1 << 1
	FaultUser       = 1 << 2
)

type tlbEntry struct {
	frame mm.Frame
	flags PageTableEntryFlag
}

// MMU translates virtual addresses through the active page directory and
// caches translations in a TLB. Changes to paging structures become visible
// only after the affected TLB entries are flushed.
type MMU struct {
	mem *mm.Memory
	pdt uintptr

	tlb     map[mm.Page]tlbEntry
	flushes uint64

	cr2       uintptr
	faultCode uint32
}

// NewMMU returns an MMU with an empty TLB and no active page directory.
func NewMMU(mem *mm.Memory) *MMU {
	return &MMU{
		mem: mem,
		tlb: make(map[mm.Page]tlbEntry),
	}
}

// SwitchPDT sets the root page directory to the specified physical address
// and flushes every non-global TLB entry.
func (m *MMU) SwitchPDT(pdtPhysAddr uintptr) {
	m.pdt = pdtPhysAddr
	m.FlushTLB()
}

// ActivePDT returns the physical address of the active page directory.
func (m *MMU) ActivePDT() uintptr {
	return m.pdt
}

// FlushTLB invalidates every cached translation that is not marked global.
func (m *MMU) FlushTLB() {
	for page, entry := range m.tlb {
		if entry.flags&FlagGlobal == 0 {
			delete(m.tlb, page)
		}
	}
	m.flushes++
}

// FlushTLBEntry invalidates the cached translation for virtAddr.
func (m *MMU) FlushTLBEntry(virtAddr uintptr) {
	delete(m.tlb, mm.PageFromAddress(virtAddr))
}

// Flushes returns the number of full TLB flushes performed.
func (m *MMU) Flushes() uint64 {
	return m.flushes
}

// Cached returns true if the translation for virtAddr is cached.
func (m *MMU) Cached(virtAddr uintptr) bool {
	_, ok := m.tlb[mm.PageFromAddress(virtAddr)]
	return ok
}

// ReadCR2 returns the address of the last faulting translation.
func (m *MMU) ReadCR2() uintptr {
	return m.cr2
}

// FaultCode returns the page fault error code of the last faulting
// translation.
func (m *MMU) FaultCode() uint32 {
	return m.faultCode
}

// Translate returns the physical address that corresponds to the supplied
// virtual address. It returns ErrInvalidMapping if the address is not mapped
// and ErrProtection if the mapping does not permit access; in both cases the
// faulting address and error code are latched for ReadCR2 and FaultCode.
func (m *MMU) Translate(virtAddr uintptr, access Access) (uintptr, *kernel.Error) {
	page := mm.PageFromAddress(virtAddr)

	entry, ok := m.tlb[page]
	if !ok {
		var err *kernel.Error
		if entry, err = m.lookup(virtAddr); err != nil {
			return 0, m.fault(virtAddr, access, 0, err)
		}
		m.tlb[page] = entry
	}

	if access&AccessUser != 0 && entry.flags&FlagUserAccessible == 0 {
		return 0, m.fault(virtAddr, access, FaultProtection, ErrProtection)
	}

	if access&(AccessUser|AccessWrite) == AccessUser|AccessWrite && entry.flags&FlagRW == 0 {
		return 0, m.fault(virtAddr, access, FaultProtection, ErrProtection)
	}

	return entry.frame.Address() + PageOffset(virtAddr), nil
}

func (m *MMU) fault(virtAddr uintptr, access Access, code uint32, err *kernel.Error) *kernel.Error {
	if access&AccessWrite != 0 {
		code |= FaultWrite
	}
	if access&AccessUser != 0 {
		code |= FaultUser
	}
	m.cr2, m.faultCode = virtAddr, code
	return err
}

// lookup walks the paging structures for virtAddr. The effective permissions
// are the intersection of the directory and table entry permissions.
func (m *MMU) lookup(virtAddr uintptr) (tlbEntry, *kernel.Error) {
	var (
		entry   tlbEntry
		mapped  bool
		flags   = FlagUserAccessible | FlagRW
		pdtAddr = m.pdt
	)

	err := walk(m.mem, pdtAddr, virtAddr, func(level uint8, _ uintptr, pte pageTableEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			return false
		}

		flags &= pte.Flags() | ^(FlagUserAccessible | FlagRW)

		switch {
		case level == 0 && pte.HasFlags(FlagHugePage):
			base := pte.LargeFrameAddress() + (virtAddr & (mm.LargePageSize - 1))
			entry = tlbEntry{frame: mm.FrameFromAddress(base), flags: flags | pte.Flags()&FlagGlobal}
			mapped = true
		case level == pageLevels-1:
			entry = tlbEntry{frame: pte.Frame(), flags: flags | pte.Flags()&FlagGlobal}
			mapped = true
		}
		return true
	})

	if err != nil || !mapped {
		return tlbEntry{}, ErrInvalidMapping
	}

	entry.flags |= FlagPresent
	return entry, nil
}
