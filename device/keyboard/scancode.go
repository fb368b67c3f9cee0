package keyboard

// Scancode set 1 make codes used by the decoder. The break code of a key is
// its make code with bit 7 set.
const (
	scanEscape     = 0x01
	scanBackspace  = 0x0e
	scanTab        = 0x0f
	scanEnter      = 0x1c
	scanCtrl       = 0x1d
	scanL          = 0x26
	scanLeftShift  = 0x2a
	scanRightShift = 0x36
	scanAlt        = 0x38
	scanSpace      = 0x39
	scanCapsLock   = 0x3a
	scanF1         = 0x3b

	breakBit = 0x80
)

// plain and shifted map make codes to characters. Zero entries have no
// printable representation.
var (
	plain = [0x3a]byte{
		0x02: '1', '2', '3', '4', '5', '6', '7', '8', '9', '0', '-', '=',
		0x10: 'q', 'w', 'e', 'r', 't', 'y', 'u', 'i', 'o', 'p', '[', ']',
		0x1e: 'a', 's', 'd', 'f', 'g', 'h', 'j', 'k', 'l', ';', '\'', '`',
		0x2b: '\\', 'z', 'x', 'c', 'v', 'b', 'n', 'm', ',', '.', '/',
		scanTab:   ' ',
		scanEnter: '\n',
		scanSpace: ' ',
	}

	shifted = [0x3a]byte{
		0x02: '!', '@', '#', '$', '%', '^', '&', '*', '(', ')', '_', '+',
		0x10: 'Q', 'W', 'E', 'R', 'T', 'Y', 'U', 'I', 'O', 'P', '{', '}',
		0x1e: 'A', 'S', 'D', 'F', 'G', 'H', 'J', 'K', 'L', ':', '"', '~',
		0x2b: '|', 'Z', 'X', 'C', 'V', 'B', 'N', 'M', '<', '>', '?',
		scanTab:   ' ',
		scanEnter: '\n',
		scanSpace: ' ',
	}
)

// translate returns the character for a make code given the modifier state.
// Caps lock only affects letters.
func translate(code byte, shift, caps bool) byte {
	if int(code) >= len(plain) {
		return 0
	}

	ch := plain[code]
	if isLetter(ch) {
		if shift != caps {
			return shifted[code]
		}
		return ch
	}

	if shift {
		return shifted[code]
	}
	return ch
}

func isLetter(ch byte) bool {
	return ch >= 'a' && ch <= 'z'
}

// Encode returns the scancodes a keyboard sends when ch is typed, including
// the shift key presses needed to produce it. Characters that cannot be typed
// yield nil.
func Encode(ch byte) []byte {
	switch ch {
	case '\n', '\r':
		return press(scanEnter)
	case '\b', 0x7f:
		return press(scanBackspace)
	case ' ':
		return press(scanSpace)
	case 0:
		return nil
	}

	for code := range plain {
		switch {
		case plain[code] == ch:
			return press(byte(code))
		case shifted[code] == ch:
			return withModifier(scanLeftShift, byte(code))
		}
	}
	return nil
}

// EncodeSwitch returns the scancodes for the Alt+F<n+1> combination that
// switches to terminal n.
func EncodeSwitch(n int) []byte {
	return withModifier(scanAlt, scanF1+byte(n))
}

// EncodeClear returns the scancodes for Ctrl+L.
func EncodeClear() []byte {
	return withModifier(scanCtrl, scanL)
}

func press(code byte) []byte {
	return []byte{code, code | breakBit}
}

func withModifier(modifier, code byte) []byte {
	return []byte{modifier, code, code | breakBit, modifier | breakBit}
}
