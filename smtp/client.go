package smtp

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/holger24/AFD-sub000/config"
	"github.com/holger24/AFD-sub000/internal/lineio"
	"github.com/holger24/AFD-sub000/internal/netio"
	"github.com/holger24/AFD-sub000/tlsio"
	"github.com/holger24/AFD-sub000/trace"
)

// Capabilities is the extension set an EHLO reply advertised.
type Capabilities struct {
	// AuthMechs lists the mechanisms of the AUTH line, upper-cased.
	AuthMechs []string

	StartTLS     bool
	EightBitMIME bool

	// Size is the advertised maximum message size; zero when the SIZE
	// extension carried no limit or was absent.
	Size int64
}

// HasAuth reports whether mech is among the advertised mechanisms.
func (c *Capabilities) HasAuth(mech string) bool {
	for _, m := range c.AuthMechs {
		if m == mech {
			return true
		}
	}
	return false
}

// Client is one SMTP session.
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

	localName string

	strict    bool
	legacy    bool
	tlsConfig *tls.Config

	caps      *Capabilities
	helloDone bool

	// inData is set between a 354 to DATA and the terminating dot.
	inData bool

	// lastByte is the final byte of the previous body block, carried
	// across Write calls so a leading dot on a new block can be
	// recognised as start-of-line. Data() resets it to '\n'.
	lastByte byte

	// lastReply is the first line of the most recent reply, preserved
	// for user-visible reporting.
	lastReply string

	simulated bool
	simQueue  []*Reply
}

// Dial connects to an SMTP server and reads the 220 banner.
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
	if c.localName == "" {
		if name, err := os.Hostname(); err == nil {
			c.localName = name
		} else {
			c.localName = "localhost"
		}
	}

	if err := c.connect(); err != nil {
		return nil, err
	}
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
	c.logger.Debug("connected", "addr", conn.RemoteAddr().String())

	c.conn = &netio.DeadlineConn{Conn: conn, Timeout: c.timeout}
	c.reader = lineio.NewReader(c.conn)

	banner, err := c.readReply()
	if err != nil {
		conn.Close()
		return err
	}
	if banner.Code != 220 {
		conn.Close()
		return &ProtocolError{Command: "CONNECT", Reply: banner.FirstLine(), Code: banner.Code}
	}
	return nil
}

// Helo introduces the client the RFC 821 way. No capabilities are
// discovered; use Ehlo when the server is expected to speak ESMTP.
func (c *Client) Helo() error {
	if _, err := c.expectCode(250, "HELO %s", c.localName); err != nil {
		return err
	}
	c.caps = &Capabilities{}
	c.helloDone = true
	return nil
}

// Ehlo introduces the client and collects the advertised extensions.
// Servers that do not speak ESMTP answer 500 or 502; callers fall back
// to Helo on that.
func (c *Client) Ehlo() (*Capabilities, error) {
	reply, err := c.expectCode(250, "EHLO %s", c.localName)
	if err != nil {
		return nil, err
	}
	c.caps = parseExtensions(reply, c.logger)
	c.helloDone = true
	return c.caps, nil
}

// parseExtensions folds the EHLO continuation lines into a capability
// set. The first line is the server greeting, not an extension.
func parseExtensions(reply *Reply, logger *slog.Logger) *Capabilities {
	caps := &Capabilities{}
	lines := strings.Split(reply.Message, "\n")
	for i, line := range lines {
		if i == 0 {
			continue
		}
		fields := strings.Fields(strings.ToUpper(line))
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "AUTH":
			caps.AuthMechs = fields[1:]
		case "STARTTLS":
			caps.StartTLS = true
		case "8BITMIME":
			caps.EightBitMIME = true
		case "SIZE":
			if len(fields) > 1 {
				if n, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
					caps.Size = n
				}
			}
		}
	}
	logger.Debug("server extensions", "auth", caps.AuthMechs, "starttls", caps.StartTLS, "size", caps.Size)
	return caps
}

// StartTLS upgrades the connection. The capability must have been
// advertised by a preceding Ehlo. The server forgets its state on
// upgrade, so the caller must Ehlo again afterwards.
func (c *Client) StartTLS(strict, legacy bool) error {
	if c.caps == nil || !c.caps.StartTLS {
		return ErrNoStartTLS
	}
	if _, err := c.expectCode(220, "STARTTLS"); err != nil {
		return err
	}
	if c.simulated {
		return nil
	}

	cfg := c.tlsConfig
	if cfg == nil {
		var err error
		cfg, err = tlsio.NewConfig(c.host, strict, legacy, c.settings)
		if err != nil {
			return err
		}
		c.tlsConfig = cfg
	}
	tlsConn, err := tlsio.Client(c.controlConn(), cfg, c.timeout, c.logger)
	if err != nil {
		return err
	}
	c.conn = &netio.DeadlineConn{Conn: tlsConn, Timeout: c.timeout}
	c.reader.Reset(c.conn)
	c.caps = nil
	c.helloDone = false
	return nil
}

// controlConn returns the raw connection under the deadline wrapper.
func (c *Client) controlConn() net.Conn {
	if dc, ok := c.conn.(*netio.DeadlineConn); ok {
		return dc.Conn
	}
	return c.conn
}

// LastReply returns the first line of the most recent server reply.
func (c *Client) LastReply() string { return c.lastReply }

// Noop sends NOOP.
func (c *Client) Noop() error {
	_, err := c.expectCode(250, "NOOP")
	return err
}

// Quit ends the session: QUIT, TLS shutdown when active, close. The
// handle must not be used afterwards.
func (c *Client) Quit() error {
	if c.conn == nil {
		return nil
	}
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
