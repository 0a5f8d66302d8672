package smtp

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
			return fmt.Errorf("smtp: nil settings")
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

// WithLocalName sets the name announced in HELO/EHLO. The default is
// the local hostname.
func WithLocalName(name string) Option {
	return func(c *Client) error {
		c.localName = name
		return nil
	}
}

// WithLogger enables debug logging of commands, replies and handshakes.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithTrace attaches the trace sink. Credential-bearing lines are
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
