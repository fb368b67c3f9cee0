package mm

import (
	"encoding/binary"

	"multiterm/kernel"
	"multiterm/kernel/sync"
)

var errOutOfRange = &kernel.Error{Module: "mm", Message: "physical address out of range"}

// Memory is the installed physical memory. Frames are backed lazily on first
// write; frames that were never written read as zero. Memory may be accessed
// from any goroutine.
type Memory struct {
	lock   sync.Spinlock
	size   uintptr
	frames map[Frame]*[PageSize]byte
}

// NewMemory returns size bytes of zeroed physical memory.
func NewMemory(size uintptr) *Memory {
	return &Memory{
		size:   size,
		frames: make(map[Frame]*[PageSize]byte),
	}
}

// Size returns the amount of installed memory.
func (m *Memory) Size() uintptr {
	return m.size
}

func (m *Memory) check(addr uintptr, n int) *kernel.Error {
	if addr >= m.size || uintptr(n) > m.size-addr {
		return errOutOfRange
	}
	return nil
}

// visit calls fn for every frame-sized chunk of [addr, addr+n). fn receives
// the frame contents (nil if the frame is not backed and alloc is false), the
// offset inside the frame and the offset inside the visited range.
func (m *Memory) visit(addr uintptr, n int, alloc bool, fn func(frame *[PageSize]byte, frameOff uintptr, off, count int)) {
	for off := 0; off < n; {
		cur := addr + uintptr(off)
		frameOff := cur & (PageSize - 1)
		count := int(PageSize - frameOff)
		if count > n-off {
			count = n - off
		}

		f := FrameFromAddress(cur)
		data := m.frames[f]
		if data == nil && alloc {
			data = new([PageSize]byte)
			m.frames[f] = data
		}

		fn(data, frameOff, off, count)
		off += count
	}
}

// Read copies len(p) bytes starting at physical address addr into p.
func (m *Memory) Read(addr uintptr, p []byte) *kernel.Error {
	if err := m.check(addr, len(p)); err != nil {
		return err
	}

	m.lock.Acquire()
	defer m.lock.Release()

	m.visit(addr, len(p), false, func(frame *[PageSize]byte, frameOff uintptr, off, count int) {
		if frame == nil {
			for i := off; i < off+count; i++ {
				p[i] = 0
			}
			return
		}
		copy(p[off:off+count], frame[frameOff:])
	})
	return nil
}

// Write copies p to physical address addr.
func (m *Memory) Write(addr uintptr, p []byte) *kernel.Error {
	if err := m.check(addr, len(p)); err != nil {
		return err
	}

	m.lock.Acquire()
	defer m.lock.Release()

	m.visit(addr, len(p), true, func(frame *[PageSize]byte, frameOff uintptr, off, count int) {
		copy(frame[frameOff:], p[off:off+count])
	})
	return nil
}

// Memset sets size bytes starting at addr to value.
func (m *Memory) Memset(addr uintptr, value byte, size uintptr) *kernel.Error {
	if err := m.check(addr, int(size)); err != nil {
		return err
	}

	m.lock.Acquire()
	defer m.lock.Release()

	m.visit(addr, int(size), value != 0, func(frame *[PageSize]byte, frameOff uintptr, _, count int) {
		if frame == nil {
			return
		}
		for i := frameOff; i < frameOff+uintptr(count); i++ {
			frame[i] = value
		}
	})
	return nil
}

// Memcopy copies size bytes from src to dst. The regions may overlap.
func (m *Memory) Memcopy(src, dst uintptr, size uintptr) *kernel.Error {
	buf := make([]byte, size)
	if err := m.Read(src, buf); err != nil {
		return err
	}
	return m.Write(dst, buf)
}

// ReadUint32 reads a little-endian 32-bit value.
func (m *Memory) ReadUint32(addr uintptr) (uint32, *kernel.Error) {
	var buf [4]byte
	if err := m.Read(addr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// WriteUint32 writes a little-endian 32-bit value.
func (m *Memory) WriteUint32(addr uintptr, v uint32) *kernel.Error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return m.Write(addr, buf[:])
}

// ReadUint16 reads a little-endian 16-bit value.
func (m *Memory) ReadUint16(addr uintptr) (uint16, *kernel.Error) {
	var buf [2]byte
	if err := m.Read(addr, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// WriteUint16 writes a little-endian 16-bit value.
func (m *Memory) WriteUint16(addr uintptr, v uint16) *kernel.Error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return m.Write(addr, buf[:])
}

// BackedFrames returns the number of frames that hold data.
func (m *Memory) BackedFrames() int {
	m.lock.Acquire()
	defer m.lock.Release()
	return len(m.frames)
}
