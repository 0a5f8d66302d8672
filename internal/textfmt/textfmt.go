// Package textfmt converts byte streams between local text conventions
// and the CRLF line endings the wire protocols require.
package textfmt

import "io"

// CRLFWriter upgrades bare LF to CRLF on its way to the underlying
// writer. A CR already followed by LF passes through unchanged. The
// last byte is carried across Write calls so a CRLF split between two
// blocks is not doubled.
type CRLFWriter struct {
	W    io.Writer
	last byte
}

// Write implements io.Writer. The returned count is the number of
// input bytes consumed, as the io.Writer contract requires.
func (w *CRLFWriter) Write(p []byte) (int, error) {
	out := make([]byte, 0, len(p)+len(p)/8)
	for _, b := range p {
		if b == '\n' && w.last != '\r' {
			out = append(out, '\r')
		}
		out = append(out, b)
		w.last = b
	}
	if _, err := w.W.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}
