// Package multiboot implements the boot information handoff between the boot
// loader and the kernel. The loader copies the boot modules into physical
// memory and describes them, together with the memory map, the framebuffer
// and the kernel command line, in a tagged information block. The kernel
// locates everything it needs through that block.
package multiboot

import (
	"encoding/binary"
	"strings"

	"multiterm/kernel"
	"multiterm/kernel/mm"
)

var (
	errBadInfo        = &kernel.Error{Module: "multiboot", Message: "malformed boot information"}
	errModuleTooLarge = &kernel.Error{Module: "multiboot", Message: "boot modules do not fit in memory"}
)

type tagType uint32

// nolint
const (
	tagMbSectionEnd tagType = iota
	tagBootCmdLine
	tagBootLoaderName
	tagModules
	tagBasicMemoryInfo
	tagBiosBootDevice
	tagMemoryMap
	tagVbeInfo
	tagFramebufferInfo
)

const (
	infoHeaderSize = 8
	tagHeaderSize  = 8
	mmapEntrySize  = 24
	tagAlign       = 8

	// LoaderName is reported in the boot loader name tag.
	LoaderName = "multiterm"
)

var le = binary.LittleEndian

// FramebufferType defines the type of the initialized framebuffer.
type FramebufferType uint8

const (
	// FramebufferTypeIndexed specifies a 256-color palette.
	FramebufferTypeIndexed FramebufferType = iota

	// FramebufferTypeRGB specifies direct RGB mode.
	FramebufferTypeRGB

	// FramebufferTypeEGA specifies EGA text mode.
	FramebufferTypeEGA
)

// FramebufferInfo provides information about the initialized framebuffer.
type FramebufferInfo struct {
	// The framebuffer physical address.
	PhysAddr uint64

	// Row pitch in bytes.
	Pitch uint32

	// Width and height in pixels (or characters if Type = FramebufferTypeEGA)
	Width, Height uint32

	// Bits per pixel (non EGA modes only).
	Bpp uint8

	// Framebuffer type.
	Type FramebufferType
}

// MemoryEntryType defines the type of a MemoryMapEntry.
type MemoryEntryType uint32

const (
	// MemAvailable indicates that the memory region is available for use.
	MemAvailable MemoryEntryType = iota + 1

	// MemReserved indicates that the memory region is not available for use.
	MemReserved

	// MemAcpiReclaimable indicates a memory region that holds ACPI info that
	// can be reused by the OS.
	MemAcpiReclaimable

	// MemNvs indicates memory that must be preserved when hibernating.
	MemNvs

	// Any value >= memUnknown will be mapped to MemReserved.
	memUnknown
)

// String implements fmt.Stringer for MemoryEntryType.
func (t MemoryEntryType) String() string {
	switch t {
	case MemAvailable:
		return "available"
	case MemReserved:
		return "reserved"
	case MemAcpiReclaimable:
		return "ACPI (reclaimable)"
	case MemNvs:
		return "NVS"
	default:
		return "unknown"
	}
}

// MemoryMapEntry describes a memory region entry, namely its physical address,
// its length and its type.
type MemoryMapEntry struct {
	// The physical address for this memory region.
	PhysAddress uint64

	// The length of the memory region.
	Length uint64

	// The type of this entry.
	Type MemoryEntryType
}

// MemRegionVisitor defies a visitor function that gets invoked by VisitMemRegions
// for each memory region provided by the boot loader. The visitor must return true
// to continue or false to abort the scan.
type MemRegionVisitor func(*MemoryMapEntry) bool

// Module describes a boot module loaded into physical memory.
type Module struct {
	// Start and End delimit the module contents. End is exclusive.
	Start, End uint32

	// CmdLine is the string the loader associated with the module.
	CmdLine string
}

// ModuleVisitor is invoked by VisitModules for each boot module. The visitor
// must return true to continue or false to abort the scan.
type ModuleVisitor func(Module) bool

// DefaultMemoryMap describes a machine with size bytes of RAM and the
// legacy video and BIOS hole below 1M.
func DefaultMemoryMap(size uint64) []MemoryMapEntry {
	return []MemoryMapEntry{
		{PhysAddress: 0, Length: 0x9fc00, Type: MemAvailable},
		{PhysAddress: 0x9fc00, Length: 0x100000 - 0x9fc00, Type: MemReserved},
		{PhysAddress: 0x100000, Length: size - 0x100000, Type: MemAvailable},
	}
}

// BootModule is a module handed to the loader.
type BootModule struct {
	Data    []byte
	CmdLine string
}

// BootParams describes what the loader passes to the kernel.
type BootParams struct {
	CmdLine     string
	Modules     []BootModule
	MemoryMap   []MemoryMapEntry
	Framebuffer *FramebufferInfo
}

// Load acts as the boot loader. It copies the modules of params to page
// aligned addresses starting at moduleBase and writes the information block
// at infoAddr. Modules must end below moduleLimit.
func Load(mem *mm.Memory, infoAddr, moduleBase, moduleLimit uintptr, params *BootParams) *kernel.Error {
	var (
		w    tagWriter
		next = moduleBase
	)

	w.string(tagBootCmdLine, params.CmdLine)
	w.string(tagBootLoaderName, LoaderName)

	for _, mod := range params.Modules {
		end := next + uintptr(len(mod.Data))
		if end > moduleLimit {
			return errModuleTooLarge
		}
		if err := mem.Write(next, mod.Data); err != nil {
			return err
		}

		payload := make([]byte, 8, 8+len(mod.CmdLine)+1)
		le.PutUint32(payload[0:], uint32(next))
		le.PutUint32(payload[4:], uint32(end))
		payload = append(append(payload, mod.CmdLine...), 0)
		w.tag(tagModules, payload)

		next = (end + mm.PageSize - 1) &^ (mm.PageSize - 1)
	}

	if len(params.MemoryMap) != 0 {
		var lower, upper uint64
		payload := make([]byte, 8, 8+mmapEntrySize*len(params.MemoryMap))
		le.PutUint32(payload[0:], mmapEntrySize)
		for _, entry := range params.MemoryMap {
			var raw [mmapEntrySize]byte
			le.PutUint64(raw[0:], entry.PhysAddress)
			le.PutUint64(raw[8:], entry.Length)
			le.PutUint32(raw[16:], uint32(entry.Type))
			payload = append(payload, raw[:]...)

			switch {
			case entry.Type != MemAvailable:
			case entry.PhysAddress == 0:
				lower = entry.Length
			case entry.PhysAddress == 0x100000:
				upper = entry.Length
			}
		}

		var basic [8]byte
		le.PutUint32(basic[0:], uint32(lower>>10))
		le.PutUint32(basic[4:], uint32(upper>>10))
		w.tag(tagBasicMemoryInfo, basic[:])
		w.tag(tagMemoryMap, payload)
	}

	if fb := params.Framebuffer; fb != nil {
		var raw [24]byte
		le.PutUint64(raw[0:], fb.PhysAddr)
		le.PutUint32(raw[8:], fb.Pitch)
		le.PutUint32(raw[12:], fb.Width)
		le.PutUint32(raw[16:], fb.Height)
		raw[20], raw[21] = fb.Bpp, byte(fb.Type)
		w.tag(tagFramebufferInfo, raw[:])
	}

	return mem.Write(infoAddr, w.finish())
}

// tagWriter encodes an information block.
type tagWriter struct {
	buf []byte
}

func (w *tagWriter) tag(t tagType, payload []byte) {
	if w.buf == nil {
		w.buf = make([]byte, infoHeaderSize)
	}

	var hdr [tagHeaderSize]byte
	le.PutUint32(hdr[0:], uint32(t))
	le.PutUint32(hdr[4:], uint32(tagHeaderSize+len(payload)))
	w.buf = append(append(w.buf, hdr[:]...), payload...)

	// Tags start at 8-byte aligned offsets.
	for len(w.buf)%tagAlign != 0 {
		w.buf = append(w.buf, 0)
	}
}

func (w *tagWriter) string(t tagType, s string) {
	w.tag(t, append([]byte(s), 0))
}

func (w *tagWriter) finish() []byte {
	w.tag(tagMbSectionEnd, nil)
	le.PutUint32(w.buf[0:], uint32(len(w.buf)))
	return w.buf
}

// Info is a boot information block located in physical memory.
type Info struct {
	mem  *mm.Memory
	data []byte

	cmdLineKV map[string]string
}

// Parse reads the information block at ptr. It fails if the block does not
// end with a terminating tag.
func Parse(mem *mm.Memory, ptr uintptr) (*Info, *kernel.Error) {
	totalSize, err := mem.ReadUint32(ptr)
	if err != nil {
		return nil, err
	}
	if totalSize < infoHeaderSize+tagHeaderSize || uintptr(totalSize) > mm.PageSize*4 {
		return nil, errBadInfo
	}

	info := &Info{mem: mem, data: make([]byte, totalSize)}
	if err = mem.Read(ptr, info.data); err != nil {
		return nil, err
	}

	for off := uint32(infoHeaderSize); ; {
		if off+tagHeaderSize > totalSize {
			return nil, errBadInfo
		}

		typ, size := tagType(le.Uint32(info.data[off:])), le.Uint32(info.data[off+4:])
		if size < tagHeaderSize || off+size > totalSize {
			return nil, errBadInfo
		}
		if typ == tagMbSectionEnd {
			return info, nil
		}
		off += (size + tagAlign - 1) &^ (tagAlign - 1)
	}
}

// visitTags invokes fn with the payload of every tag of type t until fn
// returns false.
func (i *Info) visitTags(t tagType, fn func([]byte) bool) {
	for off := uint32(infoHeaderSize); ; {
		typ, size := tagType(le.Uint32(i.data[off:])), le.Uint32(i.data[off+4:])
		if typ == tagMbSectionEnd {
			return
		}
		if typ == t && !fn(i.data[off+tagHeaderSize:off+size]) {
			return
		}
		off += (size + tagAlign - 1) &^ (tagAlign - 1)
	}
}

// findTag returns the payload of the first tag of type t or nil.
func (i *Info) findTag(t tagType) []byte {
	var payload []byte
	i.visitTags(t, func(p []byte) bool {
		payload = p
		return false
	})
	return payload
}

func cString(b []byte) string {
	for i, ch := range b {
		if ch == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// VisitMemRegions will invoke the supplied visitor for each memory region that
// is defined by the boot information.
func (i *Info) VisitMemRegions(visitor MemRegionVisitor) {
	payload := i.findTag(tagMemoryMap)
	if len(payload) < 8 {
		return
	}

	entrySize := le.Uint32(payload)
	if entrySize < 20 {
		return
	}

	for off := uint32(8); off+entrySize <= uint32(len(payload)); off += entrySize {
		entry := &MemoryMapEntry{
			PhysAddress: le.Uint64(payload[off:]),
			Length:      le.Uint64(payload[off+8:]),
			Type:        MemoryEntryType(le.Uint32(payload[off+16:])),
		}

		// Mark unknown entry types as reserved
		if entry.Type == 0 || entry.Type >= memUnknown {
			entry.Type = MemReserved
		}

		if !visitor(entry) {
			return
		}
	}
}

// MemorySize returns the lower and upper memory amounts in KB.
func (i *Info) MemorySize() (lower, upper uint32) {
	payload := i.findTag(tagBasicMemoryInfo)
	if len(payload) < 8 {
		return 0, 0
	}
	return le.Uint32(payload), le.Uint32(payload[4:])
}

// GetFramebufferInfo returns information about the framebuffer initialized by
// the boot loader or nil if none is described.
func (i *Info) GetFramebufferInfo() *FramebufferInfo {
	payload := i.findTag(tagFramebufferInfo)
	if len(payload) < 22 {
		return nil
	}

	return &FramebufferInfo{
		PhysAddr: le.Uint64(payload),
		Pitch:    le.Uint32(payload[8:]),
		Width:    le.Uint32(payload[12:]),
		Height:   le.Uint32(payload[16:]),
		Bpp:      payload[20],
		Type:     FramebufferType(payload[21]),
	}
}

// LoaderName returns the name of the boot loader.
func (i *Info) LoaderName() string {
	return cString(i.findTag(tagBootLoaderName))
}

// VisitModules invokes visitor for each boot module in load order.
func (i *Info) VisitModules(visitor ModuleVisitor) {
	i.visitTags(tagModules, func(payload []byte) bool {
		if len(payload) < 8 {
			return true
		}
		return visitor(Module{
			Start:   le.Uint32(payload),
			End:     le.Uint32(payload[4:]),
			CmdLine: cString(payload[8:]),
		})
	})
}

// ModuleData returns a copy of the contents of mod.
func (i *Info) ModuleData(mod Module) ([]byte, *kernel.Error) {
	if mod.End < mod.Start {
		return nil, errBadInfo
	}

	data := make([]byte, mod.End-mod.Start)
	if err := i.mem.Read(uintptr(mod.Start), data); err != nil {
		return nil, err
	}
	return data, nil
}

// GetBootCmdLine returns the command line key-value pairs passed to the
// kernel.
func (i *Info) GetBootCmdLine() map[string]string {
	if i.cmdLineKV != nil {
		return i.cmdLineKV
	}

	i.cmdLineKV = make(map[string]string)
	for _, pair := range strings.Fields(cString(i.findTag(tagBootCmdLine))) {
		kv := strings.Split(pair, "=")
		switch len(kv) {
		case 2: // foo=bar
			i.cmdLineKV[kv[0]] = kv[1]
		case 1: // nofoo
			i.cmdLineKV[kv[0]] = kv[0]
		}
	}

	return i.cmdLineKV
}
