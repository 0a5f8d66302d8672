package ftp

import (
	"fmt"
	"io"
	"os"

	"github.com/holger24/AFD-sub000/internal/ratelimit"
	"github.com/holger24/AFD-sub000/internal/textfmt"
	"github.com/holger24/AFD-sub000/trace"
)

// TransferType selects the representation type for transfers.
type TransferType string

const (
	TypeBinary TransferType = "I"
	TypeASCII  TransferType = "A"
)

// StoreOptions tunes upload recovery.
type StoreOptions struct {
	// Type is the representation type; binary when empty.
	Type TransferType

	// Create makes the missing parent directory when the server
	// refuses the transfer command with 550/553.
	Create bool

	// DirMode is applied to created directories (0 = server default).
	DirMode os.FileMode
}

// setType issues TYPE, skipping the command when the type is already
// current.
func (c *Client) setType(t TransferType) error {
	if c.currentType == string(t) {
		return nil
	}
	if _, err := c.expectCode(200, "TYPE %s", string(t)); err != nil {
		return err
	}
	c.currentType = string(t)
	return nil
}

// Store uploads r to path. A non-zero offset switches to APPE so an
// interrupted upload continues where it stopped. In ASCII type the
// stream's bare LFs are upgraded to CRLF on the wire.
func (c *Client) Store(path string, r io.Reader, offset int64, opts StoreOptions) error {
	transferType := opts.Type
	if transferType == "" {
		transferType = TypeBinary
	}
	if err := c.setType(transferType); err != nil {
		return err
	}

	verb := "STOR"
	if offset > 0 {
		verb = "APPE"
	}
	dataConn, err := c.openData(verb, path, offset, opts.Create, opts.DirMode)
	if err != nil {
		return err
	}

	var dst io.Writer = ratelimit.NewWriter(dataConn, c.limiter)
	dst = &traceWriter{w: dst, sink: c.sink, kind: trace.BulkWrite}
	if c.progress != nil {
		dst = &progressWriter{w: dst, fn: c.progress}
	}
	if transferType == TypeASCII {
		dst = &textfmt.CRLFWriter{W: dst}
	}

	_, copyErr := io.Copy(dst, r)
	finishErr := c.finishData(dataConn)
	if copyErr != nil {
		return fmt.Errorf("upload failed: %w", copyErr)
	}
	return finishErr
}

// Retrieve downloads path into w, resuming at offset when non-zero
// (REST before RETR).
func (c *Client) Retrieve(path string, w io.Writer, offset int64) error {
	if err := c.setType(TypeBinary); err != nil {
		return err
	}

	dataConn, err := c.openData("RETR", path, offset, false, 0)
	if err != nil {
		return err
	}

	var src io.Reader = ratelimit.NewReader(dataConn, c.limiter)
	if c.progress != nil {
		src = &progressReader{r: src, fn: c.progress}
	}
	dst := &traceWriter{w: w, sink: c.sink, kind: trace.BulkRead}

	_, copyErr := io.Copy(dst, src)
	finishErr := c.finishData(dataConn)
	if copyErr != nil {
		return fmt.Errorf("download failed: %w", copyErr)
	}
	return finishErr
}

// StoreFile uploads a local file.
func (c *Client) StoreFile(localPath, remotePath string, opts StoreOptions) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return c.Store(remotePath, f, 0, opts)
}

// RetrieveFile downloads into a local file, removing the partial file
// on failure.
func (c *Client) RetrieveFile(remotePath, localPath string) error {
	f, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := c.Retrieve(remotePath, f, 0); err != nil {
		_ = os.Remove(localPath)
		return err
	}
	return nil
}

// traceWriter counts transferred bytes into the trace sink.
type traceWriter struct {
	w    io.Writer
	sink trace.Sink
	kind trace.Kind
}

func (t *traceWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if n > 0 {
		t.sink.Trace(t.kind, n, "")
	}
	return n, err
}
