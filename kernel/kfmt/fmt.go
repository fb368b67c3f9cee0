// Package kfmt implements the kernel console printer. Output is sent to an
// output sink (normally the virtual terminal of the scheduled terminal);
// anything printed before a sink is attached is kept in a ring buffer and
// replayed when SetOutputSink is called.
package kfmt

import (
	"io"

	"multiterm/kernel/sync"
)

// maxBufSize defines the buffer size for formatting numbers.
const maxBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	// earlyPrintBuffer is a ring buffer that stores Printf output before the
	// terminals are initialized.
	earlyPrintBuffer ringBuffer

	// outputSink is a io.Writer where Printf will send its output. If set
	// to nil, then the output will be redirected to the earlyPrintBuffer.
	outputSink io.Writer

	// sinkLock serializes Printf calls and changes to the output sink.
	sinkLock sync.Spinlock
)

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the earlyPrintBuffer to it. Passing nil detaches
// the sink and discards anything buffered so far.
func SetOutputSink(w io.Writer) {
	sinkLock.Acquire()
	defer sinkLock.Release()

	outputSink = w
	if w == nil {
		earlyPrintBuffer.Reset()
		return
	}

	if lost := earlyPrintBuffer.Lost(); lost != 0 {
		Fprintf(w, "[kfmt] %d bytes of early output lost\n", lost)
	}
	io.Copy(w, &earlyPrintBuffer)
}

// GetOutputSink returns the default target for calls to Printf.
func GetOutputSink() io.Writer {
	sinkLock.Acquire()
	defer sinkLock.Release()

	return outputSink
}

// Printf provides a minimal Printf implementation with the following subset
// of formatting verbs:
//
// Strings:
//	%s the uninterpreted bytes of the string or byte slice
//	%c a single byte
//
// Integers:
//	%o base 8
//	%d base 10
//	%x base 16, with lower-case letters for a-f
//
// Booleans:
//	%t "true" or "false"
//
// Width is specified by an optional decimal number immediately preceding the verb.
// If absent, the width is whatever is necessary to represent the value.
//
// String values with length less than the specified width will be left-padded with
// spaces. Integer values formatted as base-10 will also be left-padded with spaces.
// Finally, integer values formatted as base-16 will be left-padded with zeroes.
//
// The output of Printf is written to the output sink. If no sink is attached,
// the output is buffered into a ring-buffer and replayed by SetOutputSink.
func Printf(format string, args ...interface{}) {
	sinkLock.Acquire()
	defer sinkLock.Release()

	var w io.Writer = &earlyPrintBuffer
	if outputSink != nil {
		w = outputSink
	}
	Fprintf(w, format, args...)
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	p := printer{w: w}
	p.format(format, args)
}

// printer holds the scratch space of a single Fprintf call.
type printer struct {
	w      io.Writer
	numBuf [maxBufSize + 1]byte
}

func (p *printer) format(format string, args []interface{}) {
	var (
		nextCh                       byte
		nextArgIndex                 int
		blockStart, blockEnd, padLen int
		fmtLen                       = len(format)
	)

	for blockEnd < fmtLen {
		nextCh = format[blockEnd]
		if nextCh != '%' {
			blockEnd++
			continue
		}

		if blockStart < blockEnd {
			io.WriteString(p.w, format[blockStart:blockEnd])
		}

		// Scan til we hit the format character
		padLen = 0
		blockEnd++
	parseFmt:
		for ; blockEnd < fmtLen; blockEnd++ {
			nextCh = format[blockEnd]
			switch {
			case nextCh == '%':
				p.w.Write([]byte{'%'})
				break parseFmt
			case nextCh >= '0' && nextCh <= '9':
				padLen = (padLen * 10) + int(nextCh-'0')
				continue
			case nextCh == 'd' || nextCh == 'x' || nextCh == 'o' || nextCh == 's' || nextCh == 't' || nextCh == 'c':
				// Run out of args to print
				if nextArgIndex >= len(args) {
					p.w.Write(errMissingArg)
					break parseFmt
				}

				switch nextCh {
				case 'o':
					p.fmtInt(args[nextArgIndex], 8, padLen)
				case 'd':
					p.fmtInt(args[nextArgIndex], 10, padLen)
				case 'x':
					p.fmtInt(args[nextArgIndex], 16, padLen)
				case 's':
					p.fmtString(args[nextArgIndex], padLen)
				case 't':
					p.fmtBool(args[nextArgIndex])
				case 'c':
					p.fmtChar(args[nextArgIndex])
				}

				nextArgIndex++
				break parseFmt
			}

			// reached end of formatting string without finding a verb
			p.w.Write(errNoVerb)
		}
		blockStart, blockEnd = blockEnd+1, blockEnd+1
	}

	if blockStart < blockEnd && blockStart < fmtLen {
		io.WriteString(p.w, format[blockStart:])
	}

	// Check for unused args
	for ; nextArgIndex < len(args); nextArgIndex++ {
		p.w.Write(errExtraArg)
	}
}

// fmtBool prints a formatted version of boolean value v.
func (p *printer) fmtBool(v interface{}) {
	bVal, ok := v.(bool)
	switch {
	case !ok:
		p.w.Write(errWrongArgType)
	case bVal:
		p.w.Write(trueValue)
	default:
		p.w.Write(falseValue)
	}
}

// fmtChar prints a single byte or rune that fits in a byte.
func (p *printer) fmtChar(v interface{}) {
	switch ch := v.(type) {
	case byte:
		p.w.Write([]byte{ch})
	case rune:
		if ch < 0 || ch > 0xff {
			p.w.Write(errWrongArgType)
			return
		}
		p.w.Write([]byte{byte(ch)})
	default:
		p.w.Write(errWrongArgType)
	}
}

// fmtString prints a formatted version of string or []byte value v, applying
// the padding specified by padLen.
func (p *printer) fmtString(v interface{}, padLen int) {
	switch castedVal := v.(type) {
	case string:
		p.fmtRepeat(' ', padLen-len(castedVal))
		io.WriteString(p.w, castedVal)
	case []byte:
		p.fmtRepeat(' ', padLen-len(castedVal))
		p.w.Write(castedVal)
	default:
		p.w.Write(errWrongArgType)
	}
}

// fmtRepeat writes count bytes with value ch.
func (p *printer) fmtRepeat(ch byte, count int) {
	for i := 0; i < count; i++ {
		p.w.Write([]byte{ch})
	}
}

// fmtInt prints out a formatted version of v in the requested base, applying
// the padding specified by padLen. This function supports all built-in signed
// and unsigned integer types and base 8, 10 and 16 output.
func (p *printer) fmtInt(v interface{}, base, padLen int) {
	var (
		sval             int64
		uval             uint64
		divider          = uint64(base)
		remainder        uint64
		padCh            byte = '0'
		left, right, end int
		buf              = p.numBuf[:]
	)

	if padLen >= maxBufSize {
		padLen = maxBufSize - 1
	}

	if base == 10 {
		padCh = ' '
	}

	switch t := v.(type) {
	case uint8:
		uval = uint64(t)
	case uint16:
		uval = uint64(t)
	case uint32:
		uval = uint64(t)
	case uint64:
		uval = t
	case uint:
		uval = uint64(t)
	case uintptr:
		uval = uint64(t)
	case int8:
		sval = int64(t)
	case int16:
		sval = int64(t)
	case int32:
		sval = int64(t)
	case int64:
		sval = t
	case int:
		sval = int64(t)
	default:
		p.w.Write(errWrongArgType)
		return
	}

	// Handle signs
	if sval < 0 {
		uval = uint64(-sval)
	} else if sval > 0 {
		uval = uint64(sval)
	}

	for right < maxBufSize {
		remainder = uval % divider
		if remainder < 10 {
			buf[right] = byte(remainder) + '0'
		} else {
			// map values from 10 to 15 -> a-f
			buf[right] = byte(remainder-10) + 'a'
		}

		right++

		uval /= divider
		if uval == 0 {
			break
		}
	}

	// Apply padding if required
	for ; right-left < padLen; right++ {
		buf[right] = padCh
	}

	// Apply negative sign to the rightmost blank character (if using enough padding);
	// otherwise append the sign as a new char
	if sval < 0 {
		for end = right - 1; buf[end] == ' '; end-- {
		}

		if end == right-1 {
			right++
		}

		buf[end+1] = '-'
	}

	// Reverse in place
	end = right
	for right = right - 1; left < right; left, right = left+1, right-1 {
		buf[left], buf[right] = buf[right], buf[left]
	}

	p.w.Write(buf[0:end])
}
