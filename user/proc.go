// Package user is the runtime linked into every user program. It wraps the
// system calls behind a Go API and stages their buffers in the scratch area
// of the program page, since the kernel only accepts pointers into user
// memory.
package user

import (
	"encoding/binary"
	"fmt"

	"multiterm/abi"
)

// Standard descriptors.
const (
	Stdin  int32 = 0
	Stdout int32 = 1
)

// Proc is the handle a user program uses to talk to the kernel.
type Proc struct {
	t abi.Trap
}

// NewProc wraps the trap of a running process.
func NewProc(t abi.Trap) *Proc {
	return &Proc{t: t}
}

// Halt terminates the process. It does not return.
func (p *Proc) Halt(status uint8) {
	p.t.Syscall(abi.SysHalt, uint32(status), 0, 0)
}

// Execute runs command and waits for it to finish. It returns the status the
// program halted with.
func (p *Proc) Execute(command string) (int32, error) {
	addr := p.stageString(command)
	return abi.Check(p.t.Syscall(abi.SysExecute, addr, 0, 0))
}

// Read reads up to len(buf) bytes from fd. Reads larger than the scratch area
// are truncated.
func (p *Proc) Read(fd int32, buf []byte) (int, error) {
	if len(buf) > int(abi.ScratchSize) {
		buf = buf[:abi.ScratchSize]
	}

	n, err := abi.Check(p.t.Syscall(abi.SysRead, uint32(fd), abi.ScratchBase, uint32(len(buf))))
	if err != nil {
		return 0, err
	}

	p.t.Load(abi.ScratchBase, buf[:n])
	return int(n), nil
}

// Write writes buf to fd.
func (p *Proc) Write(fd int32, buf []byte) (int, error) {
	var written int
	for len(buf) > 0 {
		chunk := buf
		if len(chunk) > int(abi.ScratchSize) {
			chunk = chunk[:abi.ScratchSize]
		}

		p.t.Store(abi.ScratchBase, chunk)
		n, err := abi.Check(p.t.Syscall(abi.SysWrite, uint32(fd), abi.ScratchBase, uint32(len(chunk))))
		if err != nil {
			return written, err
		}

		written += int(n)
		buf = buf[len(chunk):]
	}
	return written, nil
}

// Open opens the named file and returns its descriptor.
func (p *Proc) Open(name string) (int32, error) {
	return abi.Check(p.t.Syscall(abi.SysOpen, p.stageString(name), 0, 0))
}

// Close closes fd.
func (p *Proc) Close(fd int32) error {
	_, err := abi.Check(p.t.Syscall(abi.SysClose, uint32(fd), 0, 0))
	return err
}

// Args returns the argument string the program was started with.
func (p *Proc) Args() (string, error) {
	return p.ArgsN(abi.MaxArgs)
}

// ArgsN returns the argument string using a buffer of n bytes.
func (p *Proc) ArgsN(n int) (string, error) {
	if _, err := abi.Check(p.t.Syscall(abi.SysGetArgs, abi.ScratchBase, uint32(n), 0)); err != nil {
		return "", err
	}
	return p.loadString(abi.ScratchBase, n), nil
}

// Vidmap maps the terminal's text framebuffer into the address space and
// returns its address.
func (p *Proc) Vidmap() (uint32, error) {
	if _, err := abi.Check(p.t.Syscall(abi.SysVidmap, abi.ScratchBase, 0, 0)); err != nil {
		return 0, err
	}

	var b [4]byte
	p.t.Load(abi.ScratchBase, b[:])
	return binary.LittleEndian.Uint32(b[:]), nil
}

// SetHandler installs a signal handler.
func (p *Proc) SetHandler(signum, handler uint32) error {
	_, err := abi.Check(p.t.Syscall(abi.SysSetHandler, signum, handler, 0))
	return err
}

// SigReturn returns from a signal handler.
func (p *Proc) SigReturn() error {
	_, err := abi.Check(p.t.Syscall(abi.SysSigReturn, 0, 0, 0))
	return err
}

// Syscall issues a raw system call.
func (p *Proc) Syscall(num, ebx, ecx, edx uint32) int32 {
	return p.t.Syscall(num, ebx, ecx, edx)
}

// Load reads user memory at addr.
func (p *Proc) Load(addr uint32, buf []byte) {
	p.t.Load(addr, buf)
}

// Store writes user memory at addr.
func (p *Proc) Store(addr uint32, buf []byte) {
	p.t.Store(addr, buf)
}

// Step yields to pending interrupts. Long computations call it regularly.
func (p *Proc) Step() {
	p.t.Step()
}

// Print writes s to stdout.
func (p *Proc) Print(s string) {
	p.Write(Stdout, []byte(s))
}

// Printf formats according to a format specifier and writes to stdout.
func (p *Proc) Printf(format string, args ...interface{}) {
	p.Print(fmt.Sprintf(format, args...))
}

// ReadLine reads a line from stdin without its trailing newline.
func (p *Proc) ReadLine() (string, error) {
	var buf [abi.MaxArgs]byte
	n, err := p.Read(Stdin, buf[:])
	if err != nil {
		return "", err
	}

	line := buf[:n]
	if n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	return string(line), nil
}

func (p *Proc) stageString(s string) uint32 {
	if len(s) >= int(abi.ScratchSize) {
		s = s[:abi.ScratchSize-1]
	}
	p.t.Store(abi.ScratchBase, append([]byte(s), 0))
	return abi.ScratchBase
}

func (p *Proc) loadString(addr uint32, max int) string {
	buf := make([]byte, max)
	p.t.Load(addr, buf)
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}
