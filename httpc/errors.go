package httpc

import (
	"errors"
	"fmt"
)

// ErrTooLong reports a request line or header that does not fit the
// request buffer. The line is never truncated silently.
var ErrTooLong = errors.New("httpc: request line too long")

// ErrNothingToFetch is returned by Get when the server answers 304 Not
// Modified to a conditional request: the remote file has not changed.
var ErrNothingToFetch = errors.New("httpc: not modified, nothing to fetch")

// ErrLastChunk is returned by ReadChunk when the zero-length chunk
// terminating a chunked body has been consumed.
var ErrLastChunk = errors.New("httpc: last chunk")

// ErrRetryUpload is returned by PutResponse after a 401 has been
// answered by refreshing the credentials and reopening the connection.
// The request body is gone at that point, so the caller must repeat
// Put and the body writes once on the fresh connection.
var ErrRetryUpload = errors.New("httpc: credentials refreshed, repeat the upload")

// ProtocolError is a server response outside the success set for the
// request that provoked it.
type ProtocolError struct {
	Method   string
	Resource string

	// Reply is the status line of the offending response. For responses
	// that carried an error body, this is the restored first line, not
	// whatever the body reader saw last.
	Reply string
	Code  int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("httpc: %s %s: %s", e.Method, e.Resource, e.Reply)
}

// Temporary reports whether the status class is 5xx.
func (e *ProtocolError) Temporary() bool { return e.Code >= 500 && e.Code < 600 }

// UnsupportedAuthError is returned when the server demands an
// authentication scheme the driver does not speak (anything but Basic).
type UnsupportedAuthError struct {
	Scheme string
}

func (e *UnsupportedAuthError) Error() string {
	return fmt.Sprintf("httpc: %s authentication not implemented", e.Scheme)
}

// ParseError reports a malformed status line, header or chunk header.
type ParseError struct {
	What string
	Line string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("httpc: cannot parse %s in %q", e.What, e.Line)
}
