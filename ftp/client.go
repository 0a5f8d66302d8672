package ftp

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/holger24/AFD-sub000/config"
	"github.com/holger24/AFD-sub000/internal/lineio"
	"github.com/holger24/AFD-sub000/internal/netio"
	"github.com/holger24/AFD-sub000/internal/ratelimit"
	"github.com/holger24/AFD-sub000/tlsio"
	"github.com/holger24/AFD-sub000/trace"
)

// Client is an FTP control-channel session, optionally with one data
// channel open at a time.
type Client struct {
	// conn is the control channel, plain or TLS-wrapped.
	conn net.Conn

	// reader hands back one reply line at a time.
	reader *lineio.Reader

	settings *config.Settings
	resolver *netio.Resolver

	tlsMode   tlsMode
	tlsConfig *tls.Config
	strict    bool
	legacy    bool
	protData  bool // PROT P negotiated: data channel is TLS too

	timeout     time.Duration
	idleTimeout time.Duration

	logger *slog.Logger
	sink   trace.Sink

	host string
	port string

	// caps holds the FEAT capability set once discovered.
	caps *Capabilities

	// data channel policy
	activeMode    bool
	extendedMode  bool
	allowRedirect bool
	reuseDataPort bool
	dataPort      int

	// limiter throttles data-channel transfers when set.
	limiter *ratelimit.Limiter

	// progress receives the running data-channel byte count when set.
	progress func(bytesTransferred int64)

	currentType string

	// lastReply is the first line of the most recent reply, preserved
	// for user-visible reporting.
	lastReply string

	simulated bool
	simQueue  []*Reply

	mu          sync.Mutex
	lastCommand time.Time
	quitChan    chan struct{}
	data        net.Conn
}

// Dial connects to an FTP server, reads the banner and, when implicit
// TLS is configured, wraps the control channel before the banner.
//
// The banner must be 220 (service ready) or 120 (service delayed);
// anything else is surfaced as a ProtocolError.
func Dial(host string, port int, options ...Option) (*Client, error) {
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

	if err := c.connect(); err != nil {
		return nil, err
	}

	c.lastCommand = time.Now()
	c.startKeepAlive()
	return c, nil
}

func (c *Client) connect() error {
	if c.settings.Simulation {
		c.simulated = true
		c.conn = netio.NewSimConn()
		c.reader = lineio.NewReader(c.conn)
		c.sink.Trace(trace.Connect, 0, "simulated connect to "+c.host)
		c.logger.Debug("simulated connect", "host", c.host)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	addrs, err := c.resolver.Resolve(ctx, c.host, c.port)
	if err != nil {
		return err
	}

	conn, err := netio.DialFirst(addrs, c.timeout, c.logger)
	if err != nil {
		return err
	}
	c.resolver.Connected(c.host, conn.RemoteAddr().String())
	c.sink.Trace(trace.Connect, 0, "connected to "+conn.RemoteAddr().String())
	c.logger.Debug("connected", "addr", conn.RemoteAddr().String(), "tls_mode", c.tlsMode)

	if c.tlsMode == tlsModeImplicit {
		cfg, err := c.clientTLSConfig()
		if err != nil {
			conn.Close()
			return err
		}
		tlsConn, err := tlsio.Client(conn, cfg, c.timeout, c.logger)
		if err != nil {
			conn.Close()
			return err
		}
		conn = tlsConn
		c.tlsConfig = cfg
	}

	c.conn = &netio.DeadlineConn{Conn: conn, Timeout: c.timeout}
	c.reader = lineio.NewReader(c.conn)

	banner, err := c.readReply()
	if err != nil {
		conn.Close()
		return err
	}
	if banner.Code != 220 && banner.Code != 120 {
		conn.Close()
		return &ProtocolError{Command: "CONNECT", Reply: banner.FirstLine(), Code: banner.Code}
	}

	if c.tlsMode == tlsModeExplicit {
		if err := c.AuthTLS(); err != nil {
			conn.Close()
			return err
		}
		if err := c.InitProt(false); err != nil {
			conn.Close()
			return err
		}
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

// peerHost returns the address the control channel is connected to.
// The data channel is opened against this address unless redirects are
// explicitly allowed.
func (c *Client) peerHost() string {
	host, _, err := net.SplitHostPort(c.conn.RemoteAddr().String())
	if err != nil {
		return c.host
	}
	return host
}

// LastReply returns the first line of the most recent server reply.
func (c *Client) LastReply() string { return c.lastReply }

// Noop sends NOOP. Useful as a keepalive during long local operations.
func (c *Client) Noop() error {
	_, err := c.expect2xx("NOOP")
	return err
}

// Quote sends a raw command and returns the reply.
func (c *Client) Quote(format string, args ...any) (*Reply, error) {
	return c.command(format, args...)
}

// Quit tears the session down: any open data channel is closed, QUIT is
// written, TLS is shut down and the socket closed. The handle must not
// be used afterwards.
func (c *Client) Quit() error {
	if c.conn == nil {
		return nil
	}
	if c.quitChan != nil {
		close(c.quitChan)
		c.quitChan = nil
	}

	c.mu.Lock()
	if c.data != nil {
		c.data.Close()
		c.data = nil
	}
	c.mu.Unlock()

	_, _ = c.command("QUIT")

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
