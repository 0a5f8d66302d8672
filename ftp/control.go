package ftp

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/holger24/AFD-sub000/internal/netio"
	"github.com/holger24/AFD-sub000/trace"
)

// maxCommandLength bounds a formatted command line, CRLF included.
const maxCommandLength = 1024

// Reply is one FTP server reply, possibly multi-line.
type Reply struct {
	// Code is the three-digit reply code.
	Code int

	// Message is the text after the code, joined across lines.
	Message string

	// Lines holds every raw line of the reply.
	Lines []string
}

// FirstLine returns the first raw line of the reply, verbatim.
func (r *Reply) FirstLine() string {
	if len(r.Lines) == 0 {
		return ""
	}
	return r.Lines[0]
}

// Is2xx reports a positive completion reply.
func (r *Reply) Is2xx() bool { return r.Code >= 200 && r.Code < 300 }

// Is3xx reports an intermediate positive reply.
func (r *Reply) Is3xx() bool { return r.Code >= 300 && r.Code < 400 }

// command formats one command, writes it and reads the reply. At most
// one command is in flight at a time.
func (c *Client) command(format string, args ...any) (*Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writeCommand(format, args...); err != nil {
		return nil, err
	}
	return c.readReply()
}

// writeCommand formats a command into a bounded line buffer, appends
// CRLF and writes it through the control channel. The trace line is
// redacted for password-bearing commands. Callers that pipeline
// commands (fast move) invoke this twice before reading replies.
//
// The caller must hold c.mu when the client is shared with the
// keep-alive goroutine.
func (c *Client) writeCommand(format string, args ...any) error {
	line := fmt.Sprintf(format, args...)
	if len(line)+2 > maxCommandLength {
		return ErrTooLong
	}
	c.lastCommand = time.Now()

	c.logger.Debug("ftp command", "cmd", redact(line))
	c.sink.Trace(trace.CommandWrite, len(line)+2, redact(line))

	if c.simulated {
		return c.simWrite(line)
	}

	buf := make([]byte, 0, len(line)+2)
	buf = append(buf, line...)
	buf = append(buf, '\r', '\n')
	if _, err := c.conn.Write(buf); err != nil {
		return netio.Classify("write command", err)
	}
	return nil
}

// redact hides the password in PASS and ACCT lines.
func redact(line string) string {
	if len(line) >= 5 && strings.EqualFold(line[:5], "PASS ") {
		return "PASS xxx"
	}
	if len(line) >= 5 && strings.EqualFold(line[:5], "ACCT ") {
		return "ACCT xxx"
	}
	return line
}

// readReply reads one complete reply, single- or multi-line, and keeps
// its first line for reporting.
func (c *Client) readReply() (*Reply, error) {
	if c.simulated {
		return c.simReply()
	}

	line, err := c.reader.ReadLine()
	if err != nil {
		return nil, netio.Classify("read reply", err)
	}
	if len(line) < 4 {
		return nil, fmt.Errorf("ftp: malformed reply line %q", line)
	}
	code, err := strconv.Atoi(line[:3])
	if err != nil {
		return nil, fmt.Errorf("ftp: malformed reply code in %q", line)
	}

	reply := &Reply{Code: code, Lines: []string{line}}
	c.lastReply = line
	c.sink.Trace(trace.CommandRead, len(line), line)

	if line[3] == ' ' {
		reply.Message = line[4:]
		c.logger.Debug("ftp reply", "code", reply.Code, "message", reply.Message)
		return reply, nil
	}
	if line[3] != '-' {
		return nil, fmt.Errorf("ftp: malformed reply %q", line)
	}

	// Multi-line: read until "<code><space>".
	prefix := line[:3]
	for {
		next, err := c.reader.ReadLine()
		if err != nil {
			return nil, netio.Classify("read reply", err)
		}
		reply.Lines = append(reply.Lines, next)
		if len(next) >= 4 && next[:3] == prefix && next[3] == ' ' {
			break
		}
	}

	var msg []string
	for _, l := range reply.Lines {
		if len(l) >= 4 && l[:3] == prefix && (l[3] == '-' || l[3] == ' ') {
			msg = append(msg, l[4:])
		} else {
			msg = append(msg, l)
		}
	}
	reply.Message = strings.Join(msg, "\n")
	c.logger.Debug("ftp reply", "code", reply.Code, "message", reply.FirstLine())
	return reply, nil
}

// expectCode sends a command and requires an exact reply code.
func (c *Client) expectCode(code int, format string, args ...any) (*Reply, error) {
	reply, err := c.command(format, args...)
	if err != nil {
		return nil, err
	}
	if reply.Code != code {
		return reply, &ProtocolError{
			Command: commandVerb(format, args...),
			Reply:   reply.FirstLine(),
			Code:    reply.Code,
		}
	}
	return reply, nil
}

// expect2xx sends a command and requires a 2xx reply.
func (c *Client) expect2xx(format string, args ...any) (*Reply, error) {
	reply, err := c.command(format, args...)
	if err != nil {
		return nil, err
	}
	if !reply.Is2xx() {
		return reply, &ProtocolError{
			Command: commandVerb(format, args...),
			Reply:   reply.FirstLine(),
			Code:    reply.Code,
		}
	}
	return reply, nil
}

// commandVerb formats a command for error context, redacted.
func commandVerb(format string, args ...any) string {
	return redact(fmt.Sprintf(format, args...))
}
