package proc

import (
	"multiterm/abi"
	"multiterm/kernel"
)

// FileOps is the set of operations a descriptor supports. The implementation
// is chosen by file kind when the descriptor is opened.
type FileOps interface {
	Open(p *Process, d *Descriptor) *kernel.Error
	Read(p *Process, d *Descriptor, buf []byte) (int, *kernel.Error)
	Write(p *Process, d *Descriptor, buf []byte) (int, *kernel.Error)
	Close(p *Process, d *Descriptor) *kernel.Error
}

// Descriptor is an entry of a process descriptor table.
type Descriptor struct {
	Ops FileOps

	// Inode is only meaningful for regular files.
	Inode uint32

	// Offset is the read position. Directories use it as the index of the
	// next entry.
	Offset uint32

	// Handle holds per-descriptor driver state.
	Handle interface{}

	Occupied bool
}

func (d *Descriptor) install(ops FileOps, inode uint32) {
	*d = Descriptor{Ops: ops, Inode: inode, Occupied: true}
}

// Reset clears the descriptor and marks it free.
func (d *Descriptor) Reset() {
	*d = Descriptor{}
}

// Install binds ops to the lowest free descriptor that is not reserved for
// stdin or stdout and returns its number.
func (p *Process) Install(ops FileOps, inode uint32) (int, *kernel.Error) {
	for fd := 2; fd < abi.MaxFiles; fd++ {
		if !p.Files[fd].Occupied {
			p.Files[fd].install(ops, inode)
			return fd, nil
		}
	}
	return -1, ErrFilesFull
}

// File returns the open descriptor fd.
func (p *Process) File(fd int32) (*Descriptor, *kernel.Error) {
	if fd < 0 || fd >= abi.MaxFiles || !p.Files[fd].Occupied {
		return nil, ErrBadDescriptor
	}
	return &p.Files[fd], nil
}
