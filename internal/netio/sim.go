package netio

import (
	"bytes"
	"net"
	"sync"
	"time"
)

// SimConn is the simulation-mode stand-in for a real socket. Writes are
// discarded (and recorded) and reads serve a script of canned replies,
// so a driver can run its full dialogue without touching the network.
type SimConn struct {
	mu      sync.Mutex
	pending bytes.Buffer
	written bytes.Buffer
	closed  bool
}

// NewSimConn returns a SimConn primed with the given reply lines.
func NewSimConn(replies ...string) *SimConn {
	s := &SimConn{}
	for _, r := range replies {
		s.pending.WriteString(r)
		s.pending.WriteString("\r\n")
	}
	return s
}

// Queue appends one reply line to the read script.
func (s *SimConn) Queue(reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.WriteString(reply)
	s.pending.WriteString("\r\n")
}

// Written returns everything the driver has written so far.
func (s *SimConn) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.written.Bytes()...)
}

func (s *SimConn) Read(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, net.ErrClosed
	}
	return s.pending.Read(b)
}

func (s *SimConn) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, net.ErrClosed
	}
	return s.written.Write(b)
}

func (s *SimConn) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *SimConn) LocalAddr() net.Addr                { return simAddr{} }
func (s *SimConn) RemoteAddr() net.Addr               { return simAddr{} }
func (s *SimConn) SetDeadline(t time.Time) error      { return nil }
func (s *SimConn) SetReadDeadline(t time.Time) error  { return nil }
func (s *SimConn) SetWriteDeadline(t time.Time) error { return nil }

type simAddr struct{}

func (simAddr) Network() string { return "sim" }
func (simAddr) String() string  { return "simulated" }
