package programs

import (
	"bytes"

	"multiterm/abi"
	"multiterm/user"
)

const readChunk = 1024

// Ls prints the name of every file.
func Ls(p *user.Proc) uint8 {
	fd, err := p.Open(".")
	if err != nil {
		p.Print("directory open failed\n")
		return 2
	}

	var name [abi.FileNameLen + 1]byte
	for {
		n, err := p.Read(fd, name[:abi.FileNameLen])
		if err != nil {
			p.Print("directory entry read failed\n")
			return 3
		}
		if n == 0 {
			break
		}
		p.Printf("%s\n", name[:n])
	}

	p.Close(fd)
	return 0
}

// Cat prints the file named by its argument.
func Cat(p *user.Proc) uint8 {
	name, err := p.Args()
	if err != nil {
		p.Print("could not read arguments\n")
		return 3
	}

	fd, err := p.Open(name)
	if err != nil {
		p.Print("file open failed\n")
		return 2
	}
	defer p.Close(fd)

	buf := make([]byte, readChunk)
	for {
		n, err := p.Read(fd, buf)
		if err != nil {
			p.Print("file read failed\n")
			return 3
		}
		if n == 0 {
			return 0
		}
		p.Write(user.Stdout, buf[:n])
	}
}

// Grep prints the lines of every regular file that contain its argument,
// prefixed with the file name.
func Grep(p *user.Proc) uint8 {
	pattern, err := p.Args()
	if err != nil {
		p.Print("usage: grep <pattern>\n")
		return 3
	}

	dir, err := p.Open(".")
	if err != nil {
		return 2
	}
	defer p.Close(dir)

	var name [abi.FileNameLen]byte
	for {
		n, err := p.Read(dir, name[:])
		if err != nil || n == 0 {
			return 0
		}

		if fileName := string(name[:n]); fileName != "." && fileName != RTCDevice {
			grepFile(p, fileName, []byte(pattern))
		}
	}
}

func grepFile(p *user.Proc, name string, pattern []byte) {
	fd, err := p.Open(name)
	if err != nil {
		return
	}
	defer p.Close(fd)

	var (
		content []byte
		buf     = make([]byte, readChunk)
	)
	for {
		n, err := p.Read(fd, buf)
		if err != nil || n == 0 {
			break
		}
		content = append(content, buf[:n]...)
		p.Step()
	}

	for _, line := range bytes.Split(content, []byte{'\n'}) {
		if bytes.Contains(line, pattern) && isText(line) {
			p.Printf("%s:%s\n", name, line)
		}
	}
}

func isText(line []byte) bool {
	for _, b := range line {
		if b != '\t' && (b < 0x20 || b > 0x7e) {
			return false
		}
	}
	return true
}
