package syscall

import (
	"encoding/binary"

	"multiterm/device/rtc"
	"multiterm/kernel"
	"multiterm/kernel/proc"
)

// stdinFile reads lines from the terminal of the process.
type stdinFile struct{ d *Dispatcher }

func (f *stdinFile) Open(_ *proc.Process, _ *proc.Descriptor) *kernel.Error { return nil }

// Read blocks until the terminal has a complete line.
func (f *stdinFile) Read(p *proc.Process, _ *proc.Descriptor, buf []byte) (int, *kernel.Error) {
	return f.d.term.VT(p.Terminal).ReadLine(buf, f.d.pic.WaitAndService), nil
}

func (f *stdinFile) Write(_ *proc.Process, _ *proc.Descriptor, _ []byte) (int, *kernel.Error) {
	return 0, ErrBadDescriptor
}

func (f *stdinFile) Close(_ *proc.Process, _ *proc.Descriptor) *kernel.Error { return nil }

// stdoutFile prints to the terminal of the process.
type stdoutFile struct{ d *Dispatcher }

func (f *stdoutFile) Open(_ *proc.Process, _ *proc.Descriptor) *kernel.Error { return nil }

func (f *stdoutFile) Read(_ *proc.Process, _ *proc.Descriptor, _ []byte) (int, *kernel.Error) {
	return 0, ErrBadDescriptor
}

func (f *stdoutFile) Write(p *proc.Process, _ *proc.Descriptor, buf []byte) (int, *kernel.Error) {
	n, _ := f.d.term.VT(p.Terminal).Write(buf)
	return n, nil
}

func (f *stdoutFile) Close(_ *proc.Process, _ *proc.Descriptor) *kernel.Error { return nil }

// rtcFile gives each descriptor its own virtual RTC rate.
type rtcFile struct{ d *Dispatcher }

func (f *rtcFile) Open(_ *proc.Process, desc *proc.Descriptor) *kernel.Error {
	desc.Handle = f.d.rtc.NewTimer()
	return nil
}

// Read blocks until the next tick of the descriptor's timer.
func (f *rtcFile) Read(_ *proc.Process, desc *proc.Descriptor, _ []byte) (int, *kernel.Error) {
	desc.Handle.(*rtc.Timer).Wait(f.d.pic.WaitAndService)
	return 0, nil
}

// Write sets the timer rate from a 4 byte little endian frequency.
func (f *rtcFile) Write(_ *proc.Process, desc *proc.Descriptor, buf []byte) (int, *kernel.Error) {
	if len(buf) < 4 {
		return 0, ErrBadArgument
	}

	if err := desc.Handle.(*rtc.Timer).SetRate(binary.LittleEndian.Uint32(buf)); err != nil {
		return 0, ErrBadArgument
	}
	return 0, nil
}

func (f *rtcFile) Close(_ *proc.Process, desc *proc.Descriptor) *kernel.Error {
	desc.Handle = nil
	return nil
}

// dirFile returns one file name per read.
type dirFile struct{ d *Dispatcher }

func (f *dirFile) Open(_ *proc.Process, _ *proc.Descriptor) *kernel.Error { return nil }

// Read copies the name of the next directory entry. It returns 0 after the
// last entry and starts over on the following read.
func (f *dirFile) Read(_ *proc.Process, desc *proc.Descriptor, buf []byte) (int, *kernel.Error) {
	dentry, err := f.d.fs.DentryAt(int(desc.Offset))
	if err != nil {
		desc.Offset = 0
		return 0, nil
	}

	desc.Offset++
	return copy(buf, dentry.Name), nil
}

func (f *dirFile) Write(_ *proc.Process, _ *proc.Descriptor, _ []byte) (int, *kernel.Error) {
	return 0, ErrBadDescriptor
}

func (f *dirFile) Close(_ *proc.Process, _ *proc.Descriptor) *kernel.Error { return nil }

// regularFile streams file data.
type regularFile struct{ d *Dispatcher }

func (f *regularFile) Open(_ *proc.Process, _ *proc.Descriptor) *kernel.Error { return nil }

// Read copies data from the current offset. At the end of the file it
// returns 0 and rewinds.
func (f *regularFile) Read(_ *proc.Process, desc *proc.Descriptor, buf []byte) (int, *kernel.Error) {
	n, err := f.d.fs.ReadData(desc.Inode, desc.Offset, buf)
	if err != nil {
		return 0, ErrBadArgument
	}

	if n == 0 {
		desc.Offset = 0
		return 0, nil
	}

	desc.Offset += uint32(n)
	return n, nil
}

func (f *regularFile) Write(_ *proc.Process, _ *proc.Descriptor, _ []byte) (int, *kernel.Error) {
	return 0, ErrBadDescriptor
}

func (f *regularFile) Close(_ *proc.Process, _ *proc.Descriptor) *kernel.Error { return nil }
