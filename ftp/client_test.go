package ftp

import (
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/holger24/AFD-sub000/trace"
)

// mockServer scripts one FTP control-channel session for a test.
type mockServer struct {
	t        *testing.T
	listener net.Listener

	// handlers maps a command verb to its scripted behaviour; commands
	// without a handler get a plausible default reply.
	handlers map[string]func(conn *textproto.Conn, args string)

	// dataListener accepts the client's passive data connections.
	dataListener net.Listener

	mu       sync.Mutex
	received []string

	banner string
	done   chan struct{}
}

func newMockServer(t *testing.T) *mockServer {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := &mockServer{
		t:        t,
		listener: l,
		handlers: make(map[string]func(*textproto.Conn, string)),
		banner:   "220 Service ready",
		done:     make(chan struct{}),
	}
	t.Cleanup(s.close)
	return s
}

func (s *mockServer) handle(cmd string, fn func(conn *textproto.Conn, args string)) {
	s.handlers[cmd] = fn
}

func (s *mockServer) hostPort() (string, int) {
	host, portStr, _ := net.SplitHostPort(s.listener.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return host, port
}

func (s *mockServer) commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

func (s *mockServer) close() {
	s.listener.Close()
	if s.dataListener != nil {
		s.dataListener.Close()
	}
	<-s.done
}

// newDataListener replaces the passive data listener and returns the
// 227 reply advertising it. advertised overrides the address part of
// the reply, to exercise the redirect guard.
func (s *mockServer) newDataListener(advertised string) string {
	if s.dataListener != nil {
		s.dataListener.Close()
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		s.t.Fatal(err)
	}
	s.dataListener = l
	_, portStr, _ := net.SplitHostPort(l.Addr().String())
	port, _ := strconv.Atoi(portStr)
	host := advertised
	if host == "" {
		host = "127,0,0,1"
	}
	return fmt.Sprintf("227 Entering Passive Mode (%s,%d,%d)", host, port/256, port%256)
}

func (s *mockServer) start() {
	go func() {
		defer close(s.done)
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		fmt.Fprintf(conn, "%s\r\n", s.banner)

		textConn := textproto.NewConn(conn)
		for {
			line, err := textConn.ReadLine()
			if err != nil {
				return
			}
			verb, args, _ := strings.Cut(line, " ")
			verb = strings.ToUpper(verb)

			s.mu.Lock()
			s.received = append(s.received, line)
			s.mu.Unlock()

			if handler, ok := s.handlers[verb]; ok {
				handler(textConn, args)
				continue
			}
			switch verb {
			case "USER":
				_ = textConn.PrintfLine("331 User name okay, need password.")
			case "PASS":
				_ = textConn.PrintfLine("230 User logged in, proceed.")
			case "TYPE":
				_ = textConn.PrintfLine("200 Command okay.")
			case "NOOP":
				_ = textConn.PrintfLine("200 Command okay.")
			case "CWD", "DELE", "RMD", "RNTO":
				_ = textConn.PrintfLine("250 Requested file action okay.")
			case "RNFR", "REST":
				_ = textConn.PrintfLine("350 Requested file action pending.")
			case "MKD":
				_ = textConn.PrintfLine("257 \"%s\" created.", args)
			case "PWD":
				_ = textConn.PrintfLine("257 \"/home/afd\" is the current directory.")
			case "PASV":
				_ = textConn.PrintfLine("%s", s.newDataListener(""))
			case "QUIT":
				_ = textConn.PrintfLine("221 Service closing control connection.")
				return
			default:
				_ = textConn.PrintfLine("200 Command okay.")
			}
		}
	}()
}

func dialMock(t *testing.T, s *mockServer, options ...Option) *Client {
	t.Helper()
	s.start()
	host, port := s.hostPort()
	c, err := Dial(host, port, options...)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Quit() })
	return c
}

func TestDial_BannerRejected(t *testing.T) {
	t.Parallel()
	s := newMockServer(t)
	s.banner = "421 Too many connections"
	s.start()

	host, port := s.hostPort()
	_, err := Dial(host, port)
	var pe *ProtocolError
	if !errors.As(err, &pe) || pe.Code != 421 {
		t.Fatalf("expected ProtocolError 421, got %v", err)
	}
}

func TestDial_DelayedBannerAccepted(t *testing.T) {
	t.Parallel()
	s := newMockServer(t)
	s.banner = "120 Service ready in a moment"
	c := dialMock(t, s)
	if err := c.Noop(); err != nil {
		t.Fatalf("Noop after 120 banner: %v", err)
	}
}

func TestLogin_UserPass(t *testing.T) {
	t.Parallel()
	s := newMockServer(t)
	c := dialMock(t, s)

	if err := c.Login("afd", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	cmds := s.commands()
	if cmds[0] != "USER afd" || cmds[1] != "PASS secret" {
		t.Errorf("unexpected command sequence %v", cmds)
	}
}

func TestLogin_UserAloneSufficient(t *testing.T) {
	t.Parallel()
	s := newMockServer(t)
	s.handle("USER", func(conn *textproto.Conn, args string) {
		_ = conn.PrintfLine("230 Already logged in.")
	})
	c := dialMock(t, s)

	if err := c.Login("afd", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	for _, cmd := range s.commands() {
		if strings.HasPrefix(cmd, "PASS") {
			t.Error("PASS sent although USER answered 230")
		}
	}
}

func TestLogin_CannotChangeUserTreatedAsSuccess(t *testing.T) {
	t.Parallel()
	s := newMockServer(t)
	s.handle("USER", func(conn *textproto.Conn, args string) {
		_ = conn.PrintfLine("331 Can't change to another user.")
	})
	c := dialMock(t, s)

	if err := c.Login("afd", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	for _, cmd := range s.commands() {
		if strings.HasPrefix(cmd, "PASS") {
			t.Error("PASS sent although the session is already usable")
		}
	}
}

func TestLogin_Spurious430Retried(t *testing.T) {
	t.Parallel()
	s := newMockServer(t)
	attempts := 0
	s.handle("USER", func(conn *textproto.Conn, args string) {
		attempts++
		if attempts == 1 {
			_ = conn.PrintfLine("430 Still logged in from previous session.")
			return
		}
		_ = conn.PrintfLine("331 User name okay, need password.")
	})
	c := dialMock(t, s)

	if err := c.Login("afd", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 USER attempts, got %d", attempts)
	}
}

func TestLogin_AccountRequired(t *testing.T) {
	t.Parallel()
	s := newMockServer(t)
	s.handle("USER", func(conn *textproto.Conn, args string) {
		_ = conn.PrintfLine("332 Need account for login.")
	})
	c := dialMock(t, s)

	if err := c.Login("afd", "secret"); err != ErrAccountRequired {
		t.Fatalf("expected ErrAccountRequired, got %v", err)
	}
	if err := c.Account("billing"); err != nil {
		t.Fatalf("Account: %v", err)
	}
}

func TestTrace_PasswordRedacted(t *testing.T) {
	t.Parallel()
	s := newMockServer(t)
	rec := &trace.Recorder{}
	c := dialMock(t, s, WithTrace(rec))

	if err := c.Login("afd", "topsecret"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	sawRedacted := false
	for _, ev := range rec.Events() {
		if strings.Contains(ev.Line, "topsecret") {
			t.Errorf("password leaked into trace: %q", ev.Line)
		}
		if ev.Line == "PASS xxx" {
			sawRedacted = true
		}
	}
	if !sawRedacted {
		t.Error("redacted PASS line missing from trace")
	}
}

func TestQuote_CommandTooLong(t *testing.T) {
	t.Parallel()
	s := newMockServer(t)
	c := dialMock(t, s)

	_, err := c.Quote("SITE %s", strings.Repeat("x", maxCommandLength))
	if err != ErrTooLong {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}
	// The channel must still be aligned.
	if err := c.Noop(); err != nil {
		t.Fatalf("Noop after oversized command: %v", err)
	}
}
