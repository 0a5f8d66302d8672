// Package lineio implements the line reader shared by the protocol
// drivers. It hands back one CRLF- or LF-terminated line at a time from
// a bounded buffer while preserving unconsumed bytes, and can surrender
// that residue when a driver switches from reply reading to bulk-body
// reading.
package lineio

import (
	"errors"
	"io"
)

// MaxReplyLength bounds a single reply line, terminator included.
const MaxReplyLength = 4096

// ErrLineTooLong is returned when a line exceeds MaxReplyLength without
// a terminator.
var ErrLineTooLong = errors.New("reply line too long")

// Reader reads logical lines from src. It never loses bytes: anything
// read past a line terminator stays buffered for the next ReadLine or
// for Residue.
type Reader struct {
	src   io.Reader
	buf   []byte
	start int // first unconsumed byte
	end   int // one past the last buffered byte

	// err is a deferred source error, surfaced only after every
	// complete buffered line has been returned.
	err error
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader) *Reader {
	return &Reader{src: src, buf: make([]byte, MaxReplyLength)}
}

// Reset rebinds the reader to a new source, dropping buffered bytes.
// Used after a connection is rebuilt or upgraded to TLS.
func (r *Reader) Reset(src io.Reader) {
	r.src = src
	r.start = 0
	r.end = 0
	r.err = nil
}

// Buffered reports the number of unconsumed bytes.
func (r *Reader) Buffered() int { return r.end - r.start }

// ReadLine returns the next line with its CR/LF terminator stripped.
// A bare LF terminates a line as well. On EOF with a partial line
// buffered, io.ErrUnexpectedEOF is returned.
func (r *Reader) ReadLine() (string, error) {
	for {
		// Scan the unconsumed window for a terminator.
		for i := r.start; i < r.end; i++ {
			if r.buf[i] != '\n' {
				continue
			}
			line := r.buf[r.start:i]
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			r.start = i + 1
			return string(line), nil
		}

		if r.end-r.start == len(r.buf) {
			return "", ErrLineTooLong
		}

		if r.err != nil {
			if r.err == io.EOF && r.end > r.start {
				return "", io.ErrUnexpectedEOF
			}
			return "", r.err
		}

		// Compact and refill.
		if r.start > 0 {
			copy(r.buf, r.buf[r.start:r.end])
			r.end -= r.start
			r.start = 0
		}
		n, err := r.src.Read(r.buf[r.end:])
		r.end += n
		if err != nil {
			// A read may return data together with its error; the new
			// bytes are scanned for complete lines before the error
			// surfaces.
			r.err = err
		}
	}
}

// Residue returns the buffered bytes that have not been consumed by
// ReadLine and marks them consumed. Drivers call this when switching
// from header reading to bulk-body reading so no byte is lost across
// the hand-over.
func (r *Reader) Residue() []byte {
	if r.start == r.end {
		return nil
	}
	res := append([]byte(nil), r.buf[r.start:r.end]...)
	r.start = 0
	r.end = 0
	return res
}
