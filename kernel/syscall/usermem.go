package syscall

import (
	"strings"

	"multiterm/abi"
	"multiterm/kernel"
	"multiterm/kernel/mm/vmm"
)

// maxCommandLen bounds the command string read by execute.
const maxCommandLen = 1024

var errStringTooLong = &kernel.Error{Module: "syscall", Message: "string not terminated"}

// inUserPage returns true if [addr, addr+n) lies inside the program page.
func inUserPage(addr, n uint32) bool {
	return addr >= abi.UserBase && uint64(addr)+uint64(n) <= uint64(abi.UserLimit)
}

func (d *Dispatcher) copyIn(addr uint32, p []byte) *kernel.Error {
	if !inUserPage(addr, uint32(len(p))) {
		return ErrBadArgument
	}
	if err := d.as.CopyIn(addr, p, vmm.AccessUser); err != nil {
		return ErrBadArgument
	}
	return nil
}

func (d *Dispatcher) copyOut(addr uint32, p []byte) *kernel.Error {
	if !inUserPage(addr, uint32(len(p))) {
		return ErrBadArgument
	}
	if err := d.as.CopyOut(addr, p, vmm.AccessUser); err != nil {
		return ErrBadArgument
	}
	return nil
}

// readString reads a NUL-terminated string of at most max-1 bytes.
func (d *Dispatcher) readString(addr uint32, max int) (string, *kernel.Error) {
	var (
		b   [1]byte
		str = make([]byte, 0, max)
	)

	for i := 0; i < max; i++ {
		if err := d.copyIn(addr+uint32(i), b[:]); err != nil {
			return "", err
		}
		if b[0] == 0 {
			return string(str), nil
		}
		str = append(str, b[0])
	}

	return "", errStringTooLong
}

// parseCommand splits a command into the program name and its argument.
// Leading spaces are skipped and the argument keeps everything after the
// spaces that follow the name.
func parseCommand(cmd string) (string, string, *kernel.Error) {
	cmd = strings.TrimLeft(cmd, " ")
	if cmd == "" {
		return "", "", ErrBadArgument
	}

	name, args := cmd, ""
	if i := strings.IndexByte(cmd, ' '); i >= 0 {
		name, args = cmd[:i], strings.TrimLeft(cmd[i+1:], " ")
	}

	switch {
	case len(name) > abi.FileNameLen:
		return "", "", ErrNotFound
	case len(args) >= abi.MaxArgs:
		return "", "", ErrBadArgument
	}

	return name, args, nil
}
