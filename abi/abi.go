// Package abi defines the contract between the kernel and user programs: the
// syscall numbers and their status codes, the user address space layout, the
// executable image format and the trap interface user code uses to cross the
// privilege boundary.
package abi

import "encoding/binary"

// SyscallVector is the interrupt vector user programs trap through.
const SyscallVector = 0x80

// Syscall numbers, passed in EAX.
const (
	SysHalt uint32 = iota + 1
	SysExecute
	SysRead
	SysWrite
	SysOpen
	SysClose
	SysGetArgs
	SysVidmap
	SysSetHandler
	SysSigReturn
)

// User address space layout. The program page is a single 4M page mapped at
// UserBase; per-process display pages are 4K pages starting at VidmapBase.
const (
	UserBase     = uint32(0x08000000)
	UserLimit    = uint32(0x08400000)
	LoadAddr     = uint32(0x08048000)
	UserStackTop = UserLimit - 4

	// ScratchBase marks the region below the user stack that the user
	// runtime stages syscall buffers in.
	ScratchBase = uint32(0x083F0000)
	ScratchSize = uint32(0xC000)

	VidmapBase = UserLimit
)

// Executable image format.
const (
	HeaderSize   = 40
	EntryOffset  = 24
	MaxImageSize = 4 << 20
)

// Limits shared by the kernel and user programs.
const (
	FileNameLen = 32
	MaxArgs     = 128
	MaxFiles    = 8

	// ExceptionStatus is delivered to a parent whose child was terminated
	// by a CPU exception. Voluntary halts deliver status & 0xff.
	ExceptionStatus = 256
)

// Magic is the signature every executable image starts with.
var Magic = [4]byte{0x7f, 'E', 'L', 'F'}

// IsExecutable reports whether header starts with the executable signature.
func IsExecutable(header []byte) bool {
	return len(header) >= len(Magic) &&
		header[0] == Magic[0] && header[1] == Magic[1] &&
		header[2] == Magic[2] && header[3] == Magic[3]
}

// EntryPoint extracts the entry address from an image header.
func EntryPoint(header []byte) uint32 {
	if len(header) < EntryOffset+4 {
		return 0
	}
	return binary.LittleEndian.Uint32(header[EntryOffset:])
}

// BuildImage assembles a flat executable whose code starts at entry. The body
// is appended after the header verbatim.
func BuildImage(entry uint32, body []byte) []byte {
	img := make([]byte, HeaderSize+len(body))
	copy(img, Magic[:])
	binary.LittleEndian.PutUint32(img[EntryOffset:], entry)
	copy(img[HeaderSize:], body)
	return img
}

// Trap is the user-mode side of the privilege boundary. Every method is an
// instruction boundary at which pending interrupts may be delivered.
type Trap interface {
	// Syscall raises the syscall vector with EAX=num and the remaining
	// arguments in EBX, ECX and EDX. It returns EAX.
	Syscall(num, ebx, ecx, edx uint32) int32

	// Load and Store access user memory through the active page
	// directory. A failed translation raises a page fault and does not
	// return to the caller.
	Load(vaddr uint32, p []byte)
	Store(vaddr uint32, p []byte)

	// Step marks an instruction boundary inside a computation.
	Step()
}

// Entry is user code bound to the entry point of an executable. The returned
// value becomes the halt status when the entry returns.
type Entry func(Trap) uint8

// Text resolves entry addresses to user code.
type Text interface {
	Lookup(entry uint32) (Entry, bool)
}
