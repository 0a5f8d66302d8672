package ftp

import (
	"errors"
	"fmt"
)

// ErrTooLong is returned when a formatted command would exceed the
// command line buffer. The command is never truncated silently.
var ErrTooLong = errors.New("ftp: command line too long")

// ErrAccountRequired is returned when the server asks for an ACCT the
// client was not given.
var ErrAccountRequired = errors.New("ftp: server requires an account (332)")

// ProtocolError is an unexpected server reply with the full context of
// the exchange. The first reply line is preserved verbatim for
// user-visible reporting.
type ProtocolError struct {
	// Command is the command that was sent (e.g. "STOR file").
	Command string

	// Reply is the first line of the server's reply, verbatim.
	Reply string

	// Code is the three-digit reply code.
	Code int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ftp: %s failed: %s", e.Command, e.Reply)
}

// Temporary reports whether the failure is a 4xx transient one.
func (e *ProtocolError) Temporary() bool { return e.Code >= 400 && e.Code < 500 }

// Permanent reports whether the failure is a 5xx permanent one.
func (e *ProtocolError) Permanent() bool { return e.Code >= 500 && e.Code < 600 }
