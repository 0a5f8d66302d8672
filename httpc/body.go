package httpc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/holger24/AFD-sub000/internal/lineio"
	"github.com/holger24/AFD-sub000/internal/netio"
	"github.com/holger24/AFD-sub000/internal/textfmt"
	"github.com/holger24/AFD-sub000/trace"
)

// takeResidue serves body bytes the header reader over-read.
func (c *Client) takeResidue(p []byte) int {
	if len(c.residue) == 0 {
		return 0
	}
	n := copy(p, c.residue)
	c.residue = c.residue[n:]
	return n
}

// Read reads from a fixed-length or until-close response body. It
// hands out buffered bytes first, then reads the socket, and returns
// io.EOF once the body is complete.
func (c *Client) Read(p []byte) (int, error) {
	if !c.inBody {
		return 0, io.EOF
	}
	if c.chunkedBody {
		return 0, fmt.Errorf("httpc: response is chunked, use ReadChunk")
	}
	if c.remaining == 0 {
		c.inBody = false
		return 0, io.EOF
	}
	if c.remaining > 0 && int64(len(p)) > c.remaining {
		p = p[:c.remaining]
	}

	n := c.takeResidue(p)
	var err error
	if n == 0 {
		n, err = c.conn.Read(p)
	}
	if n > 0 {
		c.sink.Trace(trace.BulkRead, n, "")
		if c.remaining > 0 {
			c.remaining -= int64(n)
			if c.remaining == 0 {
				c.inBody = false
			}
		}
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			// until-close bodies end here; a short fixed-length body is
			// a broken transfer
			c.inBody = false
			c.closeNext = true
			if c.remaining > 0 {
				return n, netio.Classify("read", io.ErrUnexpectedEOF)
			}
			return n, io.EOF
		}
		return n, netio.Classify("read", err)
	}
	return n, nil
}

// readBodyLine reads one CRLF-terminated line of body framing (chunk
// headers, trailers), draining the residue before the socket.
func (c *Client) readBodyLine() (string, error) {
	for {
		if i := bytes.IndexByte(c.residue, '\n'); i >= 0 {
			line := c.residue[:i]
			c.residue = c.residue[i+1:]
			return string(bytes.TrimSuffix(line, []byte{'\r'})), nil
		}
		if len(c.residue) > lineio.MaxReplyLength {
			return "", ErrTooLong
		}
		var tmp [512]byte
		n, err := c.conn.Read(tmp[:])
		if n > 0 {
			c.residue = append(c.residue, tmp[:n]...)
			continue
		}
		if err != nil {
			return "", netio.Classify("read", err)
		}
	}
}

// readBodyFull fills b completely from the residue and the socket.
func (c *Client) readBodyFull(b []byte) error {
	n := c.takeResidue(b)
	for n < len(b) {
		m, err := c.conn.Read(b[n:])
		n += m
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return netio.Classify("read", err)
		}
	}
	return nil
}

// ReadChunk decodes one chunk of a chunked response body: a hex length
// line, then the payload with its trailing CRLF. The caller's buffer is
// grown to payload+2 bytes when too small and reused otherwise. The
// zero-length chunk consumes the trailer and returns ErrLastChunk.
func (c *Client) ReadChunk(buf *[]byte) (int, error) {
	if !c.inBody {
		return 0, ErrLastChunk
	}
	if !c.chunkedBody {
		return 0, fmt.Errorf("httpc: response is not chunked, use Read")
	}

	line, err := c.readBodyLine()
	if err != nil {
		return 0, err
	}
	sizeField := line
	if i := strings.IndexByte(sizeField, ';'); i >= 0 {
		sizeField = sizeField[:i] // chunk extensions are ignored
	}
	size, err := strconv.ParseInt(strings.TrimSpace(sizeField), 16, 32)
	if err != nil || size < 0 {
		return 0, &ParseError{What: "chunk size", Line: line}
	}

	if size == 0 {
		for {
			l, err := c.readBodyLine()
			if err != nil {
				return 0, err
			}
			if l == "" {
				break
			}
		}
		c.inBody = false
		return 0, ErrLastChunk
	}

	need := int(size) + 2
	if cap(*buf) < need {
		*buf = make([]byte, need)
	} else {
		*buf = (*buf)[:need]
	}
	if err := c.readBodyFull(*buf); err != nil {
		return 0, err
	}
	b := *buf
	if b[need-2] != '\r' || b[need-1] != '\n' {
		return 0, &ParseError{What: "chunk terminator", Line: line}
	}
	c.sink.Trace(trace.BulkRead, int(size), "")
	return int(size), nil
}

// connWriter sends body bytes to the socket with bulk tracing and
// classified errors.
type connWriter struct{ c *Client }

func (w connWriter) Write(p []byte) (int, error) {
	n, err := w.c.conn.Write(p)
	if n > 0 {
		w.c.sink.Trace(trace.BulkWrite, n, "")
	}
	if err != nil {
		return n, netio.Classify("write", err)
	}
	return n, nil
}

// Write sends request body bytes as-is (binary mode).
func (c *Client) Write(p []byte) (int, error) {
	return connWriter{c}.Write(p)
}

// WriteText sends request body bytes with bare LF upgraded to CRLF.
// The line-ending state carries across calls, so a block boundary
// between CR and LF is handled correctly.
func (c *Client) WriteText(p []byte) (int, error) {
	if c.textw == nil {
		c.textw = &textfmt.CRLFWriter{W: connWriter{c}}
	}
	return c.textw.Write(p)
}

// flushBody discards the rest of the pending response body, then
// restores the status line of that response as the user-visible reply.
// Responses that fail a request often still carry an HTML body; it has
// to leave the socket before the next request can go out.
func (c *Client) flushBody() error {
	if !c.inBody {
		return nil
	}
	statusLine := c.resp.StatusLine

	if c.chunkedBody {
		var scratch []byte
		for {
			_, err := c.ReadChunk(&scratch)
			if errors.Is(err, ErrLastChunk) {
				break
			}
			if err != nil {
				return err
			}
		}
	} else {
		var scratch [4096]byte
		for c.inBody {
			_, err := c.Read(scratch[:])
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
		}
	}

	c.lastReply = statusLine
	return nil
}
