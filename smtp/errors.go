package smtp

import (
	"errors"
	"fmt"
)

// ErrTooLong reports a formatted command that does not fit the command
// buffer. The line is never truncated silently.
var ErrTooLong = errors.New("smtp: command line too long")

// ErrNoStartTLS is returned when StartTLS is requested but the server
// did not advertise the capability.
var ErrNoStartTLS = errors.New("smtp: server does not advertise STARTTLS")

// ProtocolError is a server reply outside the success set for the
// command that provoked it.
type ProtocolError struct {
	Command string
	Reply   string
	Code    int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("smtp: %s: %s", e.Command, e.Reply)
}

// Temporary reports whether the reply is a 4xx transient negative.
func (e *ProtocolError) Temporary() bool { return e.Code >= 400 && e.Code < 500 }

// Permanent reports whether the reply is a 5xx permanent negative.
func (e *ProtocolError) Permanent() bool { return e.Code >= 500 && e.Code < 600 }
