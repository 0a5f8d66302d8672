package ftp

import (
	"bytes"
	"fmt"
	"io"

	"github.com/holger24/AFD-sub000/trace"
)

// ListMode selects the directory listing variant.
type ListMode int

const (
	// ListLong is the classic LIST output.
	ListLong ListMode = iota

	// ListNames is NLST, one name per line.
	ListNames

	// ListMachine is MLSD (RFC 3659).
	ListMachine

	// ListNamesAll is NLST -a, including dot files.
	ListNamesAll

	// ListLongAll is LIST -al.
	ListLongAll

	// ListStat reuses the control channel with STAT; no data channel
	// is opened.
	ListStat
)

func (m ListMode) command(path string) (string, error) {
	var verb string
	switch m {
	case ListLong:
		verb = "LIST"
	case ListNames:
		verb = "NLST"
	case ListMachine:
		verb = "MLSD"
	case ListNamesAll:
		verb = "NLST -a"
	case ListLongAll:
		verb = "LIST -al"
	default:
		return "", fmt.Errorf("ftp: invalid list mode %d", m)
	}
	if path != "" {
		verb += " " + path
	}
	return verb, nil
}

// ListTo streams one directory listing into w. All variants except
// ListStat open a data channel; the listing ends with the terminal
// 226/250 reply. ListStat carries the listing inside the STAT reply
// itself.
func (c *Client) ListTo(mode ListMode, path string, w io.Writer) error {
	if mode == ListStat {
		return c.statList(path, w)
	}

	if err := c.setType(TypeASCII); err != nil {
		return err
	}
	cmd, err := mode.command(path)
	if err != nil {
		return err
	}

	dataConn, err := c.openData(cmd, "", 0, false, 0)
	if err != nil {
		return err
	}
	dst := &traceWriter{w: w, sink: c.sink, kind: trace.ListRead}
	_, copyErr := io.Copy(dst, dataConn)
	finishErr := c.finishData(dataConn)
	if copyErr != nil {
		return fmt.Errorf("listing failed: %w", copyErr)
	}
	return finishErr
}

// List collects a listing into memory.
func (c *Client) List(mode ListMode, path string) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.ListTo(mode, path, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// statList issues STAT (or "STAT ." for the current directory) and
// writes the payload lines of the multi-line reply. The framing first
// and last lines are dropped.
func (c *Client) statList(path string, w io.Writer) error {
	if path == "" {
		path = "."
	}
	reply, err := c.command("STAT %s", path)
	if err != nil {
		return err
	}
	if reply.Code != 211 && reply.Code != 212 && reply.Code != 213 {
		return &ProtocolError{Command: "STAT " + path, Reply: reply.FirstLine(), Code: reply.Code}
	}

	lines := reply.Lines
	if len(lines) >= 2 {
		lines = lines[1 : len(lines)-1]
	} else {
		lines = nil
	}
	for _, line := range lines {
		n, err := fmt.Fprintf(w, "%s\n", line)
		if err != nil {
			return err
		}
		c.sink.Trace(trace.ListRead, n, "")
	}
	return nil
}
