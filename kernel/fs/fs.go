// Package fs reads the read-only boot filesystem. The image starts with a
// boot block holding the directory, followed by one inode block per regular
// file and then the data blocks:
//
//	boot block: dentry count, inode count, data block count, 52 reserved
//	            bytes, 63 dentries of 64 bytes (32-byte name, type, inode)
//	inode:      file length followed by up to 1023 data block indices
//	data block: 4K of file contents
//
// All integers are little endian.
package fs

import (
	"encoding/binary"

	"multiterm/kernel"
)

const (
	// BlockSize is the size of the boot block, inodes and data blocks.
	BlockSize = 4096

	// NameLen is the maximum file name length. Names of exactly NameLen
	// bytes are stored without a terminator.
	NameLen = 32

	// MaxDentries is the number of directory entries in the boot block.
	MaxDentries = 63

	// MaxFileBlocks is the number of data blocks an inode can reference.
	MaxFileBlocks = 1023

	dentrySize      = 64
	bootHeaderSize  = 64
	dentryTypeOff   = NameLen
	dentryInodeOff  = NameLen + 4
	inodeBlocksOff  = 4
	blockIndexBytes = 4
)

// FileType is the type recorded in a directory entry.
type FileType uint32

// The supported file types.
const (
	TypeRTC FileType = iota
	TypeDirectory
	TypeRegular
)

// String returns a short name for the type.
func (t FileType) String() string {
	switch t {
	case TypeRTC:
		return "rtc"
	case TypeDirectory:
		return "dir"
	case TypeRegular:
		return "file"
	default:
		return "unknown"
	}
}

// Dentry is a directory entry.
type Dentry struct {
	Name  string
	Type  FileType
	Inode uint32
}

var (
	// ErrNotFound is returned when a name or index does not resolve.
	ErrNotFound = &kernel.Error{Module: "fs", Message: "no such file"}

	// ErrBadInode is returned for inode numbers outside the image.
	ErrBadInode = &kernel.Error{Module: "fs", Message: "invalid inode"}

	errCorrupt = &kernel.Error{Module: "fs", Message: "corrupt filesystem image"}
)

// FS is a mounted filesystem image.
type FS struct {
	data []byte

	dentries, inodes, blocks uint32
}

// Mount validates the boot block of image and returns a filesystem that
// reads from it. The image is not copied.
func Mount(image []byte) (*FS, *kernel.Error) {
	if len(image) < BlockSize {
		return nil, errCorrupt
	}

	fs := &FS{
		data:     image,
		dentries: binary.LittleEndian.Uint32(image[0:]),
		inodes:   binary.LittleEndian.Uint32(image[4:]),
		blocks:   binary.LittleEndian.Uint32(image[8:]),
	}

	if fs.dentries > MaxDentries {
		return nil, errCorrupt
	}

	if need := (1 + uint64(fs.inodes) + uint64(fs.blocks)) * BlockSize; uint64(len(image)) < need {
		return nil, errCorrupt
	}

	return fs, nil
}

// Count returns the number of directory entries.
func (fs *FS) Count() int {
	return int(fs.dentries)
}

// DentryAt returns the directory entry with the given index.
func (fs *FS) DentryAt(index int) (Dentry, *kernel.Error) {
	if index < 0 || index >= int(fs.dentries) {
		return Dentry{}, ErrNotFound
	}

	raw := fs.data[bootHeaderSize+index*dentrySize:][:dentrySize]
	return Dentry{
		Name:  nameFromBytes(raw[:NameLen]),
		Type:  FileType(binary.LittleEndian.Uint32(raw[dentryTypeOff:])),
		Inode: binary.LittleEndian.Uint32(raw[dentryInodeOff:]),
	}, nil
}

// Lookup resolves a file name. Names longer than NameLen never match.
func (fs *FS) Lookup(name string) (Dentry, *kernel.Error) {
	if name == "" || len(name) > NameLen {
		return Dentry{}, ErrNotFound
	}

	for i := 0; i < int(fs.dentries); i++ {
		d, _ := fs.DentryAt(i)
		if d.Name == name {
			return d, nil
		}
	}

	return Dentry{}, ErrNotFound
}

func (fs *FS) inode(inode uint32) ([]byte, *kernel.Error) {
	if inode >= fs.inodes {
		return nil, ErrBadInode
	}

	off := (1 + int(inode)) * BlockSize
	return fs.data[off : off+BlockSize], nil
}

// Length returns the length of the file with the given inode.
func (fs *FS) Length(inode uint32) (uint32, *kernel.Error) {
	raw, err := fs.inode(inode)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(raw), nil
}

// ReadData copies up to len(buf) bytes of the file with the given inode,
// starting at offset, into buf. It never reads past the file length and
// returns 0 at the end of the file.
func (fs *FS) ReadData(inode, offset uint32, buf []byte) (int, *kernel.Error) {
	raw, err := fs.inode(inode)
	if err != nil {
		return 0, err
	}

	length := binary.LittleEndian.Uint32(raw)
	if offset >= length {
		return 0, nil
	}

	n := len(buf)
	if remaining := length - offset; uint64(n) > uint64(remaining) {
		n = int(remaining)
	}

	firstData := (1 + int(fs.inodes)) * BlockSize
	for read := 0; read < n; {
		pos := offset + uint32(read)
		slot := pos / BlockSize
		if slot >= MaxFileBlocks {
			return read, errCorrupt
		}

		block := binary.LittleEndian.Uint32(raw[inodeBlocksOff+slot*blockIndexBytes:])
		if block >= fs.blocks {
			return read, errCorrupt
		}

		start := firstData + int(block)*BlockSize + int(pos%BlockSize)
		count := BlockSize - int(pos%BlockSize)
		if count > n-read {
			count = n - read
		}

		copy(buf[read:read+count], fs.data[start:start+count])
		read += count
	}

	return n, nil
}

func nameFromBytes(b []byte) string {
	for i, ch := range b {
		if ch == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
