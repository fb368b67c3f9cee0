package programs

import (
	"multiterm/abi"
	"multiterm/user"
)

// Prompt is printed by the shell before reading a command.
const Prompt = "391OS> "

// Shell reads commands and runs them until it reads "exit".
func Shell(p *user.Proc) uint8 {
	for {
		p.Print(Prompt)

		line, err := p.ReadLine()
		if err != nil {
			p.Print("read from keyboard failed\n")
			return 3
		}

		switch line {
		case "":
			continue
		case "exit":
			return 0
		}

		status, err := p.Execute(line)
		switch {
		case err != nil:
			p.Print("no such command\n")
		case status == abi.ExceptionStatus:
			p.Print("program terminated by exception\n")
		case status != 0:
			p.Print("program terminated abnormally\n")
		}
	}
}
