package main

import (
	"multiterm/device/keyboard"
	"multiterm/kernel/term"
)

const (
	keyQuit  = 0x03 // Ctrl+C
	keyClear = 0x0c // Ctrl+L
	keyEsc   = 0x1b
)

// keyDecoder turns host terminal input into keyboard scancodes. Alt+1..3
// (sent as ESC followed by the digit) and F1..F3 (ESC O P..R) switch
// terminals.
type keyDecoder struct {
	readRune func() (rune, error)
}

// next reads one key and returns its scancodes. quit is set when the user
// asked to power off the machine.
func (d *keyDecoder) next() (scancodes []byte, quit bool, err error) {
	r, err := d.readRune()
	if err != nil {
		return nil, false, err
	}

	switch r {
	case keyQuit:
		return nil, true, nil
	case keyClear:
		return keyboard.EncodeClear(), false, nil
	case keyEsc:
		return d.escape()
	}

	if r > 0x7f {
		return nil, false, nil
	}
	return keyboard.Encode(byte(r)), false, nil
}

func (d *keyDecoder) escape() ([]byte, bool, error) {
	r, err := d.readRune()
	if err != nil {
		return nil, false, err
	}

	switch {
	case r >= '1' && r < '1'+term.NumTerminals:
		return keyboard.EncodeSwitch(int(r - '1')), false, nil
	case r == 'O':
		if r, err = d.readRune(); err != nil {
			return nil, false, err
		}
		if r >= 'P' && r < 'P'+term.NumTerminals {
			return keyboard.EncodeSwitch(int(r - 'P')), false, nil
		}
	}
	return nil, false, nil
}
