package programs

import (
	"strconv"

	"multiterm/user"
)

// Hello greets the user by name.
func Hello(p *user.Proc) uint8 {
	p.Print("Hi, what's your name? ")
	name, err := p.ReadLine()
	if err != nil {
		return 3
	}

	p.Printf("Hello, %s\n", name)
	return 0
}

// TestPrint prints a fixed message.
func TestPrint(p *user.Proc) uint8 {
	p.Print("Hi, this is testprint running on multiterm\n")
	return 0
}

// Counter prints the numbers from 1 to its argument (10 by default).
func Counter(p *user.Proc) uint8 {
	limit := 10
	if arg, err := p.Args(); err == nil {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			p.Print("usage: counter [count]\n")
			return 3
		}
		limit = n
	}

	for i := 1; i <= limit; i++ {
		p.Printf("%d\n", i)
		p.Step()
	}
	return 0
}

// Fault reads from an unmapped address.
func Fault(p *user.Proc) uint8 {
	var b [1]byte
	p.Load(0, b[:])
	return 0
}
