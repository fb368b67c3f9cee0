package programs

import (
	"multiterm/abi"
	"multiterm/user"
)

// SigTest exercises the signal system calls, which the kernel does not
// support.
func SigTest(p *user.Proc) uint8 {
	if err := p.SetHandler(0, abi.LoadAddr); err != nil {
		p.Printf("set_handler: %s\n", err)
	}
	if err := p.SigReturn(); err != nil {
		p.Printf("sigreturn: %s\n", err)
	}
	return 0
}

type sysErrCase struct {
	name string
	run  func(p *user.Proc) int32
	exp  abi.Errno
}

var sysErrCases = []sysErrCase{
	{"read from bad fd", func(p *user.Proc) int32 {
		return p.Syscall(abi.SysRead, 7, abi.ScratchBase, 1)
	}, abi.EBADF},
	{"write to stdin", func(p *user.Proc) int32 {
		return p.Syscall(abi.SysWrite, uint32(user.Stdin), abi.ScratchBase, 1)
	}, abi.EBADF},
	{"read from stdout", func(p *user.Proc) int32 {
		return p.Syscall(abi.SysRead, uint32(user.Stdout), abi.ScratchBase, 1)
	}, abi.EBADF},
	{"close stdin", func(p *user.Proc) int32 {
		return p.Syscall(abi.SysClose, uint32(user.Stdin), 0, 0)
	}, abi.EBADF},
	{"close unopened fd", func(p *user.Proc) int32 {
		return p.Syscall(abi.SysClose, 5, 0, 0)
	}, abi.EBADF},
	{"open missing file", func(p *user.Proc) int32 {
		_, err := p.Open("no_such_file")
		return errnoOf(err)
	}, abi.ENOENT},
	{"execute missing program", func(p *user.Proc) int32 {
		_, err := p.Execute("no_such_program")
		return errnoOf(err)
	}, abi.ENOENT},
	{"execute data file", func(p *user.Proc) int32 {
		_, err := p.Execute("frame0.txt")
		return errnoOf(err)
	}, abi.ENOEXEC},
	{"kernel buffer", func(p *user.Proc) int32 {
		return p.Syscall(abi.SysWrite, uint32(user.Stdout), 0x400000, 4)
	}, abi.EINVAL},
	{"getargs without args", func(p *user.Proc) int32 {
		_, err := p.Args()
		return errnoOf(err)
	}, abi.EINVAL},
	{"vidmap to kernel", func(p *user.Proc) int32 {
		return p.Syscall(abi.SysVidmap, 0x400000, 0, 0)
	}, abi.EINVAL},
	{"rtc bad rate", func(p *user.Proc) int32 {
		_, err := openRTC(p, 3)
		return errnoOf(err)
	}, abi.EINVAL},
	{"unknown system call", func(p *user.Proc) int32 {
		return p.Syscall(99, 0, 0, 0)
	}, abi.EINVAL},
	{"descriptor table full", func(p *user.Proc) int32 {
		var (
			fds []int32
			err error
		)
		for i := 0; i < abi.MaxFiles && err == nil; i++ {
			var fd int32
			if fd, err = p.Open("."); err == nil {
				fds = append(fds, fd)
			}
		}
		for _, fd := range fds {
			p.Close(fd)
		}
		return errnoOf(err)
	}, abi.EBUSY},
}

func errnoOf(err error) int32 {
	if errno, ok := err.(abi.Errno); ok {
		return int32(errno)
	}
	return 0
}

// SysErr checks the error paths of the system calls. It halts with the
// number of failed checks.
func SysErr(p *user.Proc) uint8 {
	var failed uint8
	for _, c := range sysErrCases {
		got := c.run(p)
		result := "PASS"
		if got != int32(c.exp) {
			result = "FAIL"
			failed++
		}
		p.Printf("%s %s\n", result, c.name)
	}

	p.Printf("%d checks, %d failed\n", len(sysErrCases), failed)
	return failed
}
