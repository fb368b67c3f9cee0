package programs

import (
	"bytes"

	"multiterm/user"
)

const (
	screenColumns = 80
	screenRows    = 25
)

var fishFrames = []string{"frame0.txt", "frame1.txt"}

// Fish animates the fish frames by writing straight into the text
// framebuffer of its terminal. The argument sets the number of frames drawn
// (10 by default).
func Fish(p *user.Proc) uint8 {
	count, ok := countArg(p, 10)
	if !ok {
		p.Print("usage: fish [frames]\n")
		return 3
	}

	var frames [][][]byte
	for _, name := range fishFrames {
		frame, err := readFile(p, name)
		if err != nil {
			p.Printf("could not read %s\n", name)
			return 2
		}
		frames = append(frames, bytes.Split(frame, []byte{'\n'}))
	}

	screen, err := p.Vidmap()
	if err != nil {
		p.Print("vidmap failed\n")
		return 2
	}

	fd, err := openRTC(p, fishRate)
	if err != nil {
		p.Print("rtc open failed\n")
		return 2
	}
	defer p.Close(fd)

	for i := 0; i < count; i++ {
		drawFrame(p, screen, frames[i%len(frames)])
		if _, err := p.Read(fd, nil); err != nil {
			return 3
		}
	}
	return 0
}

// drawFrame writes the characters of a frame into the top left corner of
// the framebuffer mapped at screen. Attributes are left untouched.
func drawFrame(p *user.Proc, screen uint32, rows [][]byte) {
	for y, row := range rows {
		if y >= screenRows {
			return
		}

		for x := 0; x < screenColumns; x++ {
			ch := byte(' ')
			if x < len(row) {
				ch = row[x]
			}
			p.Store(screen+uint32(y*screenColumns+x)*2, []byte{ch})
		}
	}
}

func readFile(p *user.Proc, name string) ([]byte, error) {
	fd, err := p.Open(name)
	if err != nil {
		return nil, err
	}
	defer p.Close(fd)

	var (
		content []byte
		buf     = make([]byte, readChunk)
	)
	for {
		n, err := p.Read(fd, buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return content, nil
		}
		content = append(content, buf[:n]...)
	}
}
