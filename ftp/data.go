package ftp

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/holger24/AFD-sub000/internal/netio"
	"github.com/holger24/AFD-sub000/tlsio"
)

const (
	// maxDataConnectRetries bounds the in-protocol recovery loops of
	// the data-transfer command (overwrite-delete, 425, create-dir).
	maxDataConnectRetries = 5

	// dataRetryPause is the pause before retrying after a 425.
	dataRetryPause = 10 * time.Millisecond

	// portReuseAttempts bounds rebinding of the remembered data port.
	portReuseAttempts = 100
)

var (
	pasvPattern = regexp.MustCompile(`\((\d+),(\d+),(\d+),(\d+),(\d+),(\d+)\)`)
	epsvPattern = regexp.MustCompile(`\(\|\|\|(\d+)\|\)`)
)

// ParseError is a local parse failure; the offending line is preserved.
type ParseError struct {
	What string
	Line string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ftp: malformed %s: %q", e.What, e.Line)
}

// parsePASV extracts host and port from a 227 reply.
func parsePASV(line string) (host string, port int, err error) {
	m := pasvPattern.FindStringSubmatch(line)
	if len(m) != 7 {
		return "", 0, &ParseError{What: "passive reply", Line: line}
	}
	var h [4]int
	for i := 0; i < 4; i++ {
		v, err := strconv.Atoi(m[i+1])
		if err != nil || v < 0 || v > 255 {
			return "", 0, &ParseError{What: "passive reply", Line: line}
		}
		h[i] = v
	}
	p1, err1 := strconv.Atoi(m[5])
	p2, err2 := strconv.Atoi(m[6])
	if err1 != nil || err2 != nil || p1 < 0 || p1 > 255 || p2 < 0 || p2 > 255 {
		return "", 0, &ParseError{What: "passive reply", Line: line}
	}
	return fmt.Sprintf("%d.%d.%d.%d", h[0], h[1], h[2], h[3]), p1*256 + p2, nil
}

// parseEPSV extracts the port from a 229 reply. Only the port is
// carried; the address always comes from the control channel.
func parseEPSV(line string) (int, error) {
	m := epsvPattern.FindStringSubmatch(line)
	if len(m) != 2 {
		return 0, &ParseError{What: "extended passive reply", Line: line}
	}
	port, err := strconv.Atoi(m[1])
	if err != nil || port < 1 || port > 65535 {
		return 0, &ParseError{What: "extended passive reply", Line: line}
	}
	return port, nil
}

// formatPORT renders addr for the PORT argument (h1,h2,h3,h4,p1,p2).
func formatPORT(addr string) (string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() == nil {
		return "", fmt.Errorf("ftp: PORT requires an IPv4 address, got %q", host)
	}
	ip = ip.To4()
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", ip[0], ip[1], ip[2], ip[3], port/256, port%256), nil
}

// formatEPRT renders addr for the EPRT argument (|1|ip|port| or
// |2|ip|port|).
func formatEPRT(addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return "", fmt.Errorf("ftp: invalid IP address %q", host)
	}
	family := 1
	if ip.To4() == nil {
		family = 2
	}
	return fmt.Sprintf("|%d|%s|%s|", family, host, port), nil
}

// openData opens the data channel and sends the transfer command,
// applying the in-protocol recovery table:
//
//	150/125/120/250/200          proceed
//	553 "(Overwrite)"            DELE target, retry
//	550 "Overwrite permission…"  DELE target, retry
//	550/553 with create set      make parent directory, retry
//	425                          10 ms pause, retry
//
// Retries are bounded by maxDataConnectRetries. On success the data
// connection is stored on the handle until CloseData.
func (c *Client) openData(verb, path string, offset int64, create bool, dirMode os.FileMode) (net.Conn, error) {
	var lastErr error
	for attempt := 0; attempt <= maxDataConnectRetries; attempt++ {
		dataConn, err := c.newDataConn()
		if err != nil {
			return nil, err
		}

		if offset > 0 && verb == "RETR" {
			reply, err := c.command("REST %d", offset)
			if err != nil {
				dataConn.Close()
				return nil, err
			}
			if reply.Code != 350 {
				// Required but tolerated; the transfer starts from zero.
				c.logger.Warn("REST not honoured", "reply", reply.FirstLine())
			}
		}

		cmd := verb
		if path != "" {
			cmd += " " + path
		}
		reply, err := c.command("%s", cmd)
		if err != nil {
			dataConn.Close()
			return nil, err
		}

		switch {
		case reply.Code == 150 || reply.Code == 125 ||
			reply.Code == 120 || reply.Code == 250 || reply.Code == 200:
			c.mu.Lock()
			c.data = dataConn
			c.mu.Unlock()
			return dataConn, nil

		case reply.Code == 553 && strings.Contains(reply.Message, "(Overwrite)"),
			reply.Code == 550 && strings.Contains(reply.Message, "Overwrite permission denied"):
			dataConn.Close()
			c.logger.Debug("overwrite denied, deleting target", "path", path)
			if err := c.Delete(path); err != nil {
				return nil, err
			}
			lastErr = &ProtocolError{Command: cmd, Reply: reply.FirstLine(), Code: reply.Code}

		case (reply.Code == 550 || reply.Code == 553) && create:
			dataConn.Close()
			if _, err := c.createTargetParent(path, dirMode); err != nil {
				return nil, err
			}
			lastErr = &ProtocolError{Command: cmd, Reply: reply.FirstLine(), Code: reply.Code}

		case reply.Code == 425:
			dataConn.Close()
			lastErr = &ProtocolError{Command: cmd, Reply: reply.FirstLine(), Code: reply.Code}
			time.Sleep(dataRetryPause)

		default:
			dataConn.Close()
			return nil, &ProtocolError{Command: cmd, Reply: reply.FirstLine(), Code: reply.Code}
		}
	}
	return nil, lastErr
}

// newDataConn builds the data connection for the configured mode.
func (c *Client) newDataConn() (net.Conn, error) {
	if c.simulated {
		return netio.NewSimConn(), nil
	}
	if c.activeMode {
		return c.activeDataConn()
	}
	return c.passiveDataConn()
}

// passiveDataConn drives PASV or EPSV and connects to the announced
// endpoint. In non-extended mode the reply's address is ignored in
// favour of the control-channel peer unless redirects were explicitly
// allowed; extended mode only ever carries a port.
func (c *Client) passiveDataConn() (net.Conn, error) {
	var addr string
	if c.extendedMode {
		reply, err := c.expectCode(229, "EPSV")
		if err != nil {
			return nil, err
		}
		port, err := parseEPSV(reply.FirstLine())
		if err != nil {
			return nil, err
		}
		addr = net.JoinHostPort(c.peerHost(), strconv.Itoa(port))
	} else {
		reply, err := c.expectCode(227, "PASV")
		if err != nil {
			return nil, err
		}
		host, port, err := parsePASV(reply.FirstLine())
		if err != nil {
			return nil, err
		}
		if !c.allowRedirect {
			host = c.peerHost()
		} else if host == "0.0.0.0" {
			host = c.peerHost()
		}
		addr = net.JoinHostPort(host, strconv.Itoa(port))
	}

	conn, err := net.DialTimeout("tcp", addr, c.timeout)
	if err != nil {
		return nil, netio.Classify("data connect", err)
	}
	if c.protData && c.tlsConfig != nil {
		tlsConn, err := tlsio.Client(conn, c.tlsConfig, c.timeout, c.logger)
		if err != nil {
			conn.Close()
			return nil, err
		}
		conn = tlsConn
	}
	return &netio.DeadlineConn{Conn: conn, Timeout: c.timeout}, nil
}

// activeDataConn binds a listener, announces it with PORT or EPRT and
// returns a connection that accepts the server's connect on first use,
// after the transfer command has been acknowledged.
func (c *Client) activeDataConn() (net.Conn, error) {
	localHost, _, err := net.SplitHostPort(c.conn.LocalAddr().String())
	if err != nil {
		localHost = "127.0.0.1"
	}

	listener, err := c.bindDataListener(localHost)
	if err != nil {
		return nil, err
	}
	addr := listener.Addr().String()
	if _, portStr, err := net.SplitHostPort(addr); err == nil {
		c.dataPort, _ = strconv.Atoi(portStr)
	}

	ip := net.ParseIP(localHost)
	useEPRT := c.extendedMode || (ip != nil && ip.To4() == nil)

	if useEPRT {
		arg, err := formatEPRT(addr)
		if err != nil {
			listener.Close()
			return nil, err
		}
		if _, err := c.expect2xx("EPRT %s", arg); err != nil {
			listener.Close()
			return nil, err
		}
	} else {
		arg, err := formatPORT(addr)
		if err != nil {
			listener.Close()
			return nil, err
		}
		if _, err := c.expect2xx("PORT %s", arg); err != nil {
			listener.Close()
			return nil, err
		}
	}

	var tlsConfig *tls.Config
	if c.protData {
		tlsConfig = c.tlsConfig
	}
	return &activeConn{listener: listener, timeout: c.timeout, tlsConfig: tlsConfig}, nil
}

// bindDataListener listens for the server's data connect. When port
// reuse is on, the previously allocated port is tried first, falling
// back to an ephemeral port once the bounded rebind attempts are spent.
func (c *Client) bindDataListener(host string) (net.Listener, error) {
	if c.reuseDataPort && c.dataPort > 0 {
		for attempt := 0; attempt < portReuseAttempts; attempt++ {
			l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(c.dataPort)))
			if err == nil {
				return l, nil
			}
			if !errors.Is(err, syscall.EADDRINUSE) && !errors.Is(err, syscall.EACCES) {
				break
			}
			time.Sleep(time.Millisecond)
		}
	}
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		// Some stacks refuse to bind the control channel's interface.
		l, err = net.Listen("tcp", ":0")
		if err != nil {
			return nil, netio.Classify("data listen", err)
		}
	}
	return l, nil
}

// activeConn defers the accept until the first read or write, which by
// the protocol ordering happens only after the server has accepted the
// transfer command. The accept runs under the transfer timeout.
type activeConn struct {
	listener  net.Listener
	conn      net.Conn
	timeout   time.Duration
	tlsConfig *tls.Config
}

func (a *activeConn) establish() error {
	if a.conn != nil {
		return nil
	}
	if a.timeout > 0 {
		if l, ok := a.listener.(*net.TCPListener); ok {
			_ = l.SetDeadline(time.Now().Add(a.timeout))
		}
	}
	conn, err := a.listener.Accept()
	if err != nil {
		return netio.Classify("data accept", err)
	}
	if a.tlsConfig != nil {
		tlsConn := tls.Client(conn, a.tlsConfig)
		_ = conn.SetDeadline(time.Now().Add(a.timeout))
		if err := tlsConn.Handshake(); err != nil {
			conn.Close()
			return err
		}
		_ = conn.SetDeadline(time.Time{})
		conn = tlsConn
	}
	a.conn = conn
	return nil
}

func (a *activeConn) Read(p []byte) (int, error) {
	if err := a.establish(); err != nil {
		return 0, err
	}
	if a.timeout > 0 {
		_ = a.conn.SetReadDeadline(time.Now().Add(a.timeout))
	}
	return a.conn.Read(p)
}

func (a *activeConn) Write(p []byte) (int, error) {
	if err := a.establish(); err != nil {
		return 0, err
	}
	if a.timeout > 0 {
		_ = a.conn.SetWriteDeadline(time.Now().Add(a.timeout))
	}
	return a.conn.Write(p)
}

func (a *activeConn) Close() error {
	var connErr, listenErr error
	if a.conn != nil {
		connErr = a.conn.Close()
	}
	if a.listener != nil {
		listenErr = a.listener.Close()
	}
	if connErr != nil {
		return connErr
	}
	return listenErr
}

func (a *activeConn) LocalAddr() net.Addr {
	if a.conn != nil {
		return a.conn.LocalAddr()
	}
	return a.listener.Addr()
}

func (a *activeConn) RemoteAddr() net.Addr {
	if a.conn != nil {
		return a.conn.RemoteAddr()
	}
	return nil
}

func (a *activeConn) SetDeadline(t time.Time) error {
	if a.conn != nil {
		return a.conn.SetDeadline(t)
	}
	return nil
}

func (a *activeConn) SetReadDeadline(t time.Time) error {
	if a.conn != nil {
		return a.conn.SetReadDeadline(t)
	}
	return nil
}

func (a *activeConn) SetWriteDeadline(t time.Time) error {
	if a.conn != nil {
		return a.conn.SetWriteDeadline(t)
	}
	return nil
}

// finishData closes the data channel, then reads the terminal 226/250.
// The read runs with a doubled timeout to tolerate slow close paths.
func (c *Client) finishData(dataConn net.Conn) error {
	closeErr := dataConn.Close()

	c.mu.Lock()
	c.data = nil
	c.mu.Unlock()

	if dc, ok := c.conn.(*netio.DeadlineConn); ok {
		saved := dc.Timeout
		dc.Timeout = 2 * saved
		defer func() { dc.Timeout = saved }()
	}

	reply, err := c.readReply()
	if err != nil {
		return err
	}
	if reply.Code != 226 && reply.Code != 250 {
		return &ProtocolError{Command: "transfer", Reply: reply.FirstLine(), Code: reply.Code}
	}
	return closeErr
}
