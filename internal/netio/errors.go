package netio

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

// Kind classifies a transport-level failure. The protocol drivers branch
// on the kind to decide between retry, reconnect and surfacing the error.
type Kind int

const (
	// KindGeneric is any failure not covered by a more specific kind.
	KindGeneric Kind = iota

	// KindTimeout means a read, write, connect or handshake exceeded
	// the transfer timeout.
	KindTimeout

	// KindConnectionReset means the peer closed or sent RST mid-operation.
	KindConnectionReset

	// KindConnectionRefused means the remote stack denied the connect.
	KindConnectionRefused

	// KindHangup means an orderly close at a point where bytes were expected.
	KindHangup

	// KindPermanentDisconnect means an operation was attempted on a handle
	// whose socket is already closed.
	KindPermanentDisconnect
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnectionReset:
		return "connection reset"
	case KindConnectionRefused:
		return "connection refused"
	case KindHangup:
		return "hangup"
	case KindPermanentDisconnect:
		return "permanent disconnect"
	default:
		return "error"
	}
}

// Error wraps a transport failure with its classification and the
// operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Timeout implements the net.Error convention.
func (e *Error) Timeout() bool { return e.Kind == KindTimeout }

// Classify wraps err in an *Error carrying its transport kind.
// A nil err returns nil.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kindOf(err), Op: op, Err: err}
}

func kindOf(err error) Kind {
	var alreadyClassified *Error
	if errors.As(err, &alreadyClassified) {
		return alreadyClassified.Kind
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindHangup
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) {
		return KindPermanentDisconnect
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return KindConnectionReset
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindConnectionRefused
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if os.IsTimeout(err) {
		return KindTimeout
	}
	return KindGeneric
}

// KindOf reports the classification of err, unwrapping as needed.
func KindOf(err error) Kind { return kindOf(err) }

// IsTimeout reports whether err classifies as a timeout.
func IsTimeout(err error) bool { return err != nil && kindOf(err) == KindTimeout }

// IsReset reports whether err classifies as a connection reset.
func IsReset(err error) bool { return err != nil && kindOf(err) == KindConnectionReset }

// IsHangup reports whether err classifies as an orderly close where
// bytes were expected.
func IsHangup(err error) bool { return err != nil && kindOf(err) == KindHangup }

// isPermanentDial reports whether a connect failure from one endpoint
// should end the whole address iteration instead of moving on to the
// next address.
func isPermanentDial(err error) bool {
	return errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM)
}
