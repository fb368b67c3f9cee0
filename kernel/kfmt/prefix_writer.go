package kfmt

import (
	"bytes"
	"io"
)

// PrefixWriter is an io.Writer that starts every line it forwards to Sink
// with Prefix. The hal uses it to tag driver probe output with the driver
// name.
type PrefixWriter struct {
	Sink   io.Writer
	Prefix []byte

	// midLine is set when the last byte forwarded was not a line feed.
	midLine bool
}

// Reset switches to a new prefix and treats the next write as the start of
// a line.
func (w *PrefixWriter) Reset(prefix []byte) {
	w.Prefix = prefix
	w.midLine = false
}

// Write implements io.Writer. The returned count excludes the injected
// prefixes.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var written int

	for len(p) != 0 {
		if !w.midLine {
			if _, err := w.Sink.Write(w.Prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		line := p
		if i := bytes.IndexByte(p, '\n'); i >= 0 {
			line = p[:i+1]
			w.midLine = false
		}

		n, err := w.Sink.Write(line)
		written += n
		if err != nil {
			return written, err
		}
		p = p[len(line):]
	}

	return written, nil
}
