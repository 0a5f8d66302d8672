package lineio

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

// chunkedReader delivers its payload in fixed-size chunks to exercise
// line reassembly across arbitrary read boundaries.
type chunkedReader struct {
	data  []byte
	chunk int
	pos   int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.pos >= len(c.data) {
		return 0, io.EOF
	}
	n := c.chunk
	if n > len(p) {
		n = len(p)
	}
	if c.pos+n > len(c.data) {
		n = len(c.data) - c.pos
	}
	copy(p, c.data[c.pos:c.pos+n])
	c.pos += n
	return n, nil
}

func TestReadLine_AllChunkSizes(t *testing.T) {
	t.Parallel()
	input := "220 Service ready\r\n331 User name okay\r\nbare-lf line\n230 ok\r\n"
	want := []string{"220 Service ready", "331 User name okay", "bare-lf line", "230 ok"}

	for chunk := 1; chunk <= len(input); chunk++ {
		r := NewReader(&chunkedReader{data: []byte(input), chunk: chunk})
		for i, w := range want {
			line, err := r.ReadLine()
			if err != nil {
				t.Fatalf("chunk=%d line=%d: %v", chunk, i, err)
			}
			if line != w {
				t.Fatalf("chunk=%d line=%d: got %q, want %q", chunk, i, line, w)
			}
		}
		if _, err := r.ReadLine(); err != io.EOF {
			t.Fatalf("chunk=%d: expected EOF after last line, got %v", chunk, err)
		}
	}
}

func TestReadLine_ResidueHandOff(t *testing.T) {
	t.Parallel()
	// A header line followed by body bytes delivered in one read.
	input := "200 OK\r\nbody-bytes-after-header"
	r := NewReader(strings.NewReader(input))

	line, err := r.ReadLine()
	if err != nil {
		t.Fatal(err)
	}
	if line != "200 OK" {
		t.Fatalf("got %q", line)
	}

	res := r.Residue()
	if string(res) != "body-bytes-after-header" {
		t.Fatalf("residue = %q", res)
	}
	if r.Buffered() != 0 {
		t.Fatalf("buffered after residue = %d", r.Buffered())
	}
}

// eofReader hands back its whole payload together with io.EOF in a
// single Read call, which the io.Reader contract permits.
type eofReader struct {
	data []byte
	done bool
}

func (e *eofReader) Read(p []byte) (int, error) {
	if e.done {
		return 0, io.EOF
	}
	e.done = true
	return copy(p, e.data), io.EOF
}

func TestReadLine_DataWithEOFInOneRead(t *testing.T) {
	t.Parallel()
	r := NewReader(&eofReader{data: []byte("220 Service ready\r\n331 User name okay\r\n")})

	for _, want := range []string{"220 Service ready", "331 User name okay"} {
		line, err := r.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine: %v", err)
		}
		if line != want {
			t.Fatalf("got %q, want %q", line, want)
		}
	}
	if _, err := r.ReadLine(); err != io.EOF {
		t.Fatalf("expected EOF after last line, got %v", err)
	}
}

func TestReadLine_DataWithEOFPartialTail(t *testing.T) {
	t.Parallel()
	r := NewReader(&eofReader{data: []byte("200 OK\r\npartial")})

	line, err := r.ReadLine()
	if err != nil {
		t.Fatal(err)
	}
	if line != "200 OK" {
		t.Fatalf("got %q", line)
	}
	if _, err := r.ReadLine(); err != io.ErrUnexpectedEOF {
		t.Fatalf("expected ErrUnexpectedEOF for the unterminated tail, got %v", err)
	}
}

func TestReadLine_PartialLineAtEOF(t *testing.T) {
	t.Parallel()
	r := NewReader(strings.NewReader("no terminator"))
	if _, err := r.ReadLine(); err != io.ErrUnexpectedEOF {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestReadLine_TooLong(t *testing.T) {
	t.Parallel()
	r := NewReader(bytes.NewReader(bytes.Repeat([]byte{'a'}, MaxReplyLength+1)))
	if _, err := r.ReadLine(); err != ErrLineTooLong {
		t.Fatalf("expected ErrLineTooLong, got %v", err)
	}
}

func FuzzReadLine(f *testing.F) {
	f.Add([]byte("220 hello\r\nworld\r\n"), 1)
	f.Add([]byte("a\nb\nc"), 3)
	f.Add([]byte("\r\n\r\n"), 2)

	f.Fuzz(func(t *testing.T, data []byte, chunk int) {
		if chunk < 1 {
			chunk = 1
		}
		if chunk > len(data)+1 {
			chunk = len(data) + 1
		}

		r := NewReader(&chunkedReader{data: data, chunk: chunk})
		var got []string
		for {
			line, err := r.ReadLine()
			if err != nil {
				break
			}
			got = append(got, line)
		}

		// Oracle: split on '\n', strip one trailing '\r' per line; bytes
		// past the last terminator are not returned as a line. A raw line
		// that cannot fit in the buffer together with its terminator ends
		// the stream with ErrLineTooLong.
		var want []string
		rest := data
		for {
			i := bytes.IndexByte(rest, '\n')
			if i < 0 || i >= MaxReplyLength {
				break
			}
			line := rest[:i]
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			want = append(want, string(line))
			rest = rest[i+1:]
		}

		if len(got) != len(want) {
			t.Fatalf("got %d lines, want %d (chunk=%d)", len(got), len(want), chunk)
		}
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("line %d: got %q, want %q", i, got[i], want[i])
			}
		}
	})
}
