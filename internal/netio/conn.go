package netio

import (
	"net"
	"time"
)

// DeadlineConn wraps a net.Conn and arms a read/write deadline before
// every operation so no call blocks longer than the transfer timeout.
type DeadlineConn struct {
	net.Conn
	Timeout time.Duration
}

func (c *DeadlineConn) Read(b []byte) (n int, err error) {
	if c.Timeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.Timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *DeadlineConn) Write(b []byte) (n int, err error) {
	if c.Timeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.Timeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}

// Alive performs a non-blocking liveness probe on an idle connection.
// It reports false when the peer has already closed its side. Any byte
// that happens to be readable counts as alive; the caller's next read
// will pick it up from the kernel buffer only if the transport supports
// it, so Alive must only be used on connections with no data expected.
func Alive(c net.Conn) bool {
	if err := c.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return false
	}
	defer c.SetReadDeadline(time.Time{})

	one := make([]byte, 1)
	_, err := c.Read(one)
	if err == nil {
		// Unexpected pipelined byte; treat the connection as unusable.
		return false
	}
	return kindOf(err) == KindTimeout
}
