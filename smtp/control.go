package smtp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/holger24/AFD-sub000/internal/netio"
	"github.com/holger24/AFD-sub000/trace"
)

// maxCommandLength bounds a formatted command line, CRLF included.
const maxCommandLength = 1024

// Reply is one SMTP server reply, possibly multi-line.
type Reply struct {
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

// command formats one command, writes it and reads the reply.
func (c *Client) command(format string, args ...any) (*Reply, error) {
	if err := c.writeCommand(false, format, args...); err != nil {
		return nil, err
	}
	return c.readReply()
}

// writeCommand formats a command into a bounded line buffer, appends
// CRLF and writes it. With hidden set the trace and log line is
// replaced wholesale, for base64 credential responses.
func (c *Client) writeCommand(hidden bool, format string, args ...any) error {
	line := fmt.Sprintf(format, args...)
	if len(line)+2 > maxCommandLength {
		return ErrTooLong
	}

	traced := line
	if hidden {
		traced = "<hidden>"
	}
	c.logger.Debug("smtp command", "cmd", traced)
	c.sink.Trace(trace.CommandWrite, len(line)+2, traced)

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

// readReply reads one complete reply. Multi-line replies use the
// "250-" continuation convention and end at "250 ".
func (c *Client) readReply() (*Reply, error) {
	if c.simulated {
		return c.simReply()
	}

	reply := &Reply{}
	var msg []string
	for {
		line, err := c.reader.ReadLine()
		if err != nil {
			return nil, netio.Classify("read reply", err)
		}
		if len(line) < 3 {
			return nil, fmt.Errorf("smtp: malformed reply line %q", line)
		}
		code, err := strconv.Atoi(line[:3])
		if err != nil {
			return nil, fmt.Errorf("smtp: malformed reply code in %q", line)
		}
		if reply.Code == 0 {
			reply.Code = code
			c.lastReply = line
		} else if code != reply.Code {
			return nil, fmt.Errorf("smtp: inconsistent reply codes %d and %d", reply.Code, code)
		}
		reply.Lines = append(reply.Lines, line)
		c.sink.Trace(trace.CommandRead, len(line), line)

		if len(line) > 3 {
			msg = append(msg, line[4:])
			if line[3] == '-' {
				continue
			}
			if line[3] != ' ' {
				return nil, fmt.Errorf("smtp: malformed reply %q", line)
			}
		}
		break
	}
	reply.Message = strings.Join(msg, "\n")
	c.logger.Debug("smtp reply", "code", reply.Code, "message", reply.FirstLine())
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
			Command: fmt.Sprintf(format, args...),
			Reply:   reply.FirstLine(),
			Code:    reply.Code,
		}
	}
	return reply, nil
}
