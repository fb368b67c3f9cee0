package fs

import (
	"encoding/binary"

	"multiterm/kernel"
)

var (
	errNameLength   = &kernel.Error{Module: "fs", Message: "file name must be 1 to 32 bytes long"}
	errDuplicate    = &kernel.Error{Module: "fs", Message: "duplicate file name"}
	errTooManyFiles = &kernel.Error{Module: "fs", Message: "directory is full"}
	errFileTooLarge = &kernel.Error{Module: "fs", Message: "file exceeds the maximum file size"}
)

// MaxFileSize is the largest file an inode can describe.
const MaxFileSize = MaxFileBlocks * BlockSize

type builderEntry struct {
	name string
	typ  FileType
	data []byte
}

// Builder assembles filesystem images.
type Builder struct {
	entries []builderEntry
}

// NewBuilder returns a builder whose image contains the "." directory entry.
func NewBuilder() *Builder {
	b := &Builder{}
	b.add(".", TypeDirectory, nil)
	return b
}

// AddFile adds a regular file.
func (b *Builder) AddFile(name string, data []byte) *kernel.Error {
	if len(data) > MaxFileSize {
		return errFileTooLarge
	}
	return b.add(name, TypeRegular, data)
}

// AddDevice adds an RTC device entry.
func (b *Builder) AddDevice(name string) *kernel.Error {
	return b.add(name, TypeRTC, nil)
}

func (b *Builder) add(name string, typ FileType, data []byte) *kernel.Error {
	if len(name) == 0 || len(name) > NameLen {
		return errNameLength
	}

	for _, e := range b.entries {
		if e.name == name {
			return errDuplicate
		}
	}

	if len(b.entries) == MaxDentries {
		return errTooManyFiles
	}

	b.entries = append(b.entries, builderEntry{name: name, typ: typ, data: data})
	return nil
}

// Bytes encodes the image. Regular files get consecutive inodes in the order
// they were added and their data blocks are laid out contiguously.
func (b *Builder) Bytes() []byte {
	var inodes, blocks uint32
	for _, e := range b.entries {
		if e.typ == TypeRegular {
			inodes++
			blocks += uint32((len(e.data) + BlockSize - 1) / BlockSize)
		}
	}

	img := make([]byte, (1+inodes+blocks)*BlockSize)
	binary.LittleEndian.PutUint32(img[0:], uint32(len(b.entries)))
	binary.LittleEndian.PutUint32(img[4:], inodes)
	binary.LittleEndian.PutUint32(img[8:], blocks)

	var (
		nextInode uint32
		nextBlock uint32
		dataStart = (1 + inodes) * BlockSize
	)

	for i, e := range b.entries {
		dentry := img[bootHeaderSize+i*dentrySize:][:dentrySize]
		copy(dentry[:NameLen], e.name)
		binary.LittleEndian.PutUint32(dentry[dentryTypeOff:], uint32(e.typ))

		if e.typ != TypeRegular {
			continue
		}

		binary.LittleEndian.PutUint32(dentry[dentryInodeOff:], nextInode)
		inode := img[(1+nextInode)*BlockSize:][:BlockSize]
		binary.LittleEndian.PutUint32(inode, uint32(len(e.data)))

		for off, slot := 0, 0; off < len(e.data); off, slot = off+BlockSize, slot+1 {
			binary.LittleEndian.PutUint32(inode[inodeBlocksOff+slot*blockIndexBytes:], nextBlock)
			copy(img[dataStart+nextBlock*BlockSize:], e.data[off:])
			nextBlock++
		}
		nextInode++
	}

	return img
}
