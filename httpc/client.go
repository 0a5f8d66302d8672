package httpc

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"log/slog"
	"net"
	"time"

	"github.com/holger24/AFD-sub000/config"
	"github.com/holger24/AFD-sub000/internal/lineio"
	"github.com/holger24/AFD-sub000/internal/netio"
	"github.com/holger24/AFD-sub000/internal/textfmt"
	"github.com/holger24/AFD-sub000/tlsio"
	"github.com/holger24/AFD-sub000/trace"
)

const userAgent = "AFD/1.0"

// Client is one HTTP/1.1 connection to one server (or proxy), driving
// one request at a time.
type Client struct {
	conn   net.Conn
	reader *lineio.Reader

	settings *config.Settings
	resolver *netio.Resolver

	timeout time.Duration
	logger  *slog.Logger
	sink    trace.Sink

	host string
	port string

	proxyHost string
	proxyPort string

	useTLS    bool
	strict    bool
	legacy    bool
	tlsConfig *tls.Config

	user  string
	pass  string
	basic string // "Basic <base64>", assembled once and reused

	sndBufSize int
	rcvBufSize int

	// headLatched is set when this connection answered HEAD with
	// 400/403/405/501; subsequent Gets skip the preliminary HEAD.
	headLatched bool

	resp        Response
	remaining   int64 // unread fixed-length body bytes, -1 when reading until close
	inBody      bool
	chunkedBody bool

	// residue holds bytes the reply reader over-read past the header
	// block; body reads drain it before touching the socket.
	residue []byte

	textw *textfmt.CRLFWriter

	// putResource is the resource of an in-flight PUT, kept for error
	// reporting in PutResponse.
	putResource string

	// closeNext records a Connection: close on the previous response;
	// the next request reopens the connection first.
	closeNext bool
	used      bool

	// lastReply is the status line of the most recent response,
	// preserved for user-visible reporting.
	lastReply string

	simulated bool
}

// Connect opens the connection (to the proxy when one is configured,
// the origin server otherwise) and primes the authorisation material.
// No request is sent yet.
//
// With TLS the handshake carries the origin host as SNI even when a
// proxy is in the path.
func Connect(host string, port int, options ...Option) (*Client, error) {
	portStr, err := netio.SplitPort(port)
	if err != nil {
		return nil, err
	}

	c := &Client{
		host:     host,
		port:     portStr,
		settings: config.Default(),
		logger:   slog.New(discardHandler{}),
		sink:     trace.Nop{},
	}
	for _, opt := range options {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.timeout == 0 {
		c.timeout = c.settings.TransferTimeout
	}
	if c.resolver == nil {
		c.resolver = &netio.Resolver{}
	}
	c.resolver.DisableIPv6 = c.settings.DisableIPv6
	if c.resolver.Logger == nil {
		c.resolver.Logger = c.logger
	}
	if c.user != "" {
		c.basic = "Basic " + base64.StdEncoding.EncodeToString([]byte(c.user+":"+c.pass))
	}

	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	c.headLatched = false
	c.closeNext = false
	c.used = false
	c.inBody = false
	c.residue = nil
	c.textw = nil

	if c.settings.Simulation {
		c.simulated = true
		c.conn = netio.NewSimConn()
		c.reader = lineio.NewReader(c.conn)
		c.sink.Trace(trace.Connect, 0, "simulated connect to "+c.host)
		c.logger.Debug("simulated connect", "host", c.host)
		return nil
	}

	dialHost, dialPort := c.host, c.port
	if c.proxyHost != "" {
		dialHost, dialPort = c.proxyHost, c.proxyPort
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	addrs, err := c.resolver.Resolve(ctx, dialHost, dialPort)
	if err != nil {
		return err
	}

	conn, err := netio.DialFirst(addrs, c.timeout, c.logger)
	if err != nil {
		return err
	}
	c.resolver.Connected(dialHost, conn.RemoteAddr().String())
	c.sink.Trace(trace.Connect, 0, "connected to "+conn.RemoteAddr().String())
	c.logger.Debug("connected", "addr", conn.RemoteAddr().String(), "proxy", c.proxyHost != "", "tls", c.useTLS)

	if tcp, ok := conn.(*net.TCPConn); ok {
		if c.sndBufSize > 0 {
			if err := tcp.SetWriteBuffer(c.sndBufSize); err != nil {
				c.logger.Warn("cannot set send buffer size", "size", c.sndBufSize, "err", err)
			}
		}
		if c.rcvBufSize > 0 {
			if err := tcp.SetReadBuffer(c.rcvBufSize); err != nil {
				c.logger.Warn("cannot set receive buffer size", "size", c.rcvBufSize, "err", err)
			}
		}
	}

	if c.useTLS {
		cfg := c.tlsConfig
		if cfg == nil {
			cfg, err = tlsio.NewConfig(c.host, c.strict, c.legacy, c.settings)
			if err != nil {
				conn.Close()
				return err
			}
			c.tlsConfig = cfg
		}
		tlsConn, err := tlsio.Client(conn, cfg, c.timeout, c.logger)
		if err != nil {
			conn.Close()
			return err
		}
		conn = tlsConn
	}

	c.conn = &netio.DeadlineConn{Conn: conn, Timeout: c.timeout}
	c.reader = lineio.NewReader(c.conn)
	return nil
}

// reconnect tears the current connection down and opens a fresh one.
// Per-connection state, the HEAD latch included, starts over.
func (c *Client) reconnect() error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.logger.Debug("reopening connection", "host", c.host)
	return c.connect()
}

// ensureLive reopens the connection when the previous response asked
// for it, or when a zero-byte probe shows the server has hung up on an
// idle reused connection.
func (c *Client) ensureLive() error {
	if c.conn == nil || c.closeNext {
		return c.reconnect()
	}
	if c.used && !c.simulated && !netio.Alive(c.controlConn()) {
		c.logger.Debug("idle connection is dead, reopening")
		return c.reconnect()
	}
	return nil
}

// controlConn returns the raw connection under the deadline wrapper.
func (c *Client) controlConn() net.Conn {
	if dc, ok := c.conn.(*netio.DeadlineConn); ok {
		return dc.Conn
	}
	return c.conn
}

// LastReply returns the status line of the most recent response.
func (c *Client) LastReply() string { return c.lastReply }

// Noop verifies the connection is still usable with an OPTIONS *
// request.
func (c *Client) Noop() error {
	resp, err := c.roundTrip("OPTIONS", "*", nil)
	if err != nil {
		return err
	}
	if resp.Code < 200 || resp.Code > 299 {
		if err := c.flushBody(); err != nil {
			return err
		}
		return &ProtocolError{Method: "OPTIONS", Resource: "*", Reply: c.lastReply, Code: resp.Code}
	}
	return c.flushBody()
}

// Quit closes the connection: TLS shutdown when active, then close.
// Authorisation material is released. The handle must not be used
// afterwards.
func (c *Client) Quit() error {
	c.basic = ""
	c.pass = ""
	if c.conn == nil {
		return nil
	}
	if tlsConn, ok := c.controlConn().(*tls.Conn); ok {
		_ = tlsio.Shutdown(tlsConn, c.timeout)
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// discardHandler is the no-op default for unconfigured logging.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
