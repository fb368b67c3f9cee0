package programs

import (
	"encoding/binary"
	"strconv"

	"multiterm/user"
)

const (
	pingPongRate  = 32
	pingPongWidth = 40
	fishRate      = 8
)

// openRTC opens the RTC device at hz.
func openRTC(p *user.Proc, hz uint32) (int32, error) {
	fd, err := p.Open(RTCDevice)
	if err != nil {
		return -1, err
	}

	var rate [4]byte
	binary.LittleEndian.PutUint32(rate[:], hz)
	if _, err = p.Write(fd, rate[:]); err != nil {
		p.Close(fd)
		return -1, err
	}
	return fd, nil
}

// countArg parses the optional count argument of a program.
func countArg(p *user.Proc, def int) (int, bool) {
	arg, err := p.Args()
	if err != nil {
		return def, true
	}

	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// PingPong bounces a ball across the line once per RTC tick. The argument
// sets the number of lines drawn (20 by default).
func PingPong(p *user.Proc) uint8 {
	lines, ok := countArg(p, 20)
	if !ok {
		p.Print("usage: pingpong [lines]\n")
		return 3
	}

	fd, err := openRTC(p, pingPongRate)
	if err != nil {
		p.Print("rtc open failed\n")
		return 2
	}
	defer p.Close(fd)

	pos, dir := 0, 1
	line := make([]byte, pingPongWidth+1)
	for i := 0; i < lines; i++ {
		for j := range line {
			line[j] = ' '
		}
		line[pos], line[pingPongWidth] = 'o', '\n'
		p.Write(user.Stdout, line)

		if pos+dir < 0 || pos+dir >= pingPongWidth {
			dir = -dir
		}
		pos += dir

		if _, err := p.Read(fd, nil); err != nil {
			return 3
		}
	}
	return 0
}
