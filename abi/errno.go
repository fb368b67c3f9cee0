package abi

// Errno is the negative status a failed syscall returns in EAX.
type Errno int32

// The status codes returned by the kernel.
const (
	ENOENT  Errno = -2
	ENOEXEC Errno = -8
	EBADF   Errno = -9
	EBUSY   Errno = -16
	EINVAL  Errno = -22
)

var errnoText = map[Errno]string{
	ENOENT:  "no such file",
	ENOEXEC: "not an executable",
	EBADF:   "bad file descriptor",
	EBUSY:   "resource busy",
	EINVAL:  "invalid argument",
}

// Error implements the error interface.
func (e Errno) Error() string {
	if msg, ok := errnoText[e]; ok {
		return msg
	}
	return "unknown error"
}

// Check converts a syscall return value into a result and an error. Negative
// values are reported as Errno.
func Check(ret int32) (int32, error) {
	if ret < 0 {
		return ret, Errno(ret)
	}
	return ret, nil
}
