package httpc

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/holger24/AFD-sub000/config"
	"github.com/holger24/AFD-sub000/internal/netio"
	"github.com/holger24/AFD-sub000/ipdb"
	"github.com/holger24/AFD-sub000/trace"
)

// Option configures a Client before it connects.
type Option func(*Client) error

// WithSettings supplies the process-wide control variables. The default
// is config.Default().
func WithSettings(s *config.Settings) Option {
	return func(c *Client) error {
		if s == nil {
			return fmt.Errorf("httpc: nil settings")
		}
		c.settings = s
		return nil
	}
}

// WithTimeout overrides the transfer timeout for this connection.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		c.timeout = timeout
		return nil
	}
}

// WithProxy routes all requests through an HTTP proxy. Request lines
// switch to the absolute form.
func WithProxy(host string, port int) Option {
	return func(c *Client) error {
		portStr, err := netio.SplitPort(port)
		if err != nil {
			return err
		}
		c.proxyHost = host
		c.proxyPort = portStr
		return nil
	}
}

// WithCredentials primes Basic authorisation material. The header is
// assembled once at connect and attached to every request.
func WithCredentials(user, pass string) Option {
	return func(c *Client) error {
		c.user = user
		c.pass = pass
		return nil
	}
}

// WithTLS wraps the connection in TLS. The handshake uses the origin
// host as server name even when a proxy is configured.
func WithTLS(strict, legacy bool) Option {
	return func(c *Client) error {
		c.useTLS = true
		c.strict = strict
		c.legacy = legacy
		return nil
	}
}

// WithBuffers sets the kernel socket buffer sizes. Zero leaves the
// system default in place.
func WithBuffers(sndSize, rcvSize int) Option {
	return func(c *Client) error {
		c.sndBufSize = sndSize
		c.rcvBufSize = rcvSize
		return nil
	}
}

// WithLogger enables debug logging of requests, responses and
// handshakes.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithTrace attaches the trace sink. Authorisation headers are
// redacted before they reach it.
func WithTrace(sink trace.Sink) Option {
	return func(c *Client) error {
		if sink == nil {
			sink = trace.Nop{}
		}
		c.sink = sink
		return nil
	}
}

// WithIPDatabase attaches the IP-database collaborator consulted when
// name resolution fails.
func WithIPDatabase(db ipdb.Database) Option {
	return func(c *Client) error {
		c.resolver = &netio.Resolver{Database: db}
		return nil
	}
}
