package ftp

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/holger24/AFD-sub000/config"
	"github.com/holger24/AFD-sub000/internal/netio"
	"github.com/holger24/AFD-sub000/internal/ratelimit"
	"github.com/holger24/AFD-sub000/ipdb"
	"github.com/holger24/AFD-sub000/trace"
)

// Option configures a Client before it connects.
type Option func(*Client) error

type tlsMode int

const (
	tlsModeNone tlsMode = iota
	tlsModeExplicit
	tlsModeImplicit
)

// WithSettings supplies the process-wide control variables. The default
// is config.Default().
func WithSettings(s *config.Settings) Option {
	return func(c *Client) error {
		if s == nil {
			return fmt.Errorf("ftp: nil settings")
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

// WithIdleTimeout enables the NOOP keep-alive goroutine: if the control
// channel stays idle this long, a NOOP is sent. Zero disables it.
func WithIdleTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		c.idleTimeout = timeout
		return nil
	}
}

// WithImplicitTLS wraps the control channel in TLS immediately after
// connect, before the banner.
func WithImplicitTLS(strict, legacy bool) Option {
	return func(c *Client) error {
		if c.tlsMode == tlsModeExplicit {
			return fmt.Errorf("ftp: implicit TLS cannot be combined with explicit TLS")
		}
		c.tlsMode = tlsModeImplicit
		c.strict = strict
		c.legacy = legacy
		return nil
	}
}

// WithExplicitTLS upgrades the control channel with AUTH TLS after the
// banner and negotiates PBSZ 0 / PROT P.
func WithExplicitTLS(strict, legacy bool) Option {
	return func(c *Client) error {
		if c.tlsMode == tlsModeImplicit {
			return fmt.Errorf("ftp: explicit TLS cannot be combined with implicit TLS")
		}
		c.tlsMode = tlsModeExplicit
		c.strict = strict
		c.legacy = legacy
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

// WithTrace attaches the trace sink. Password-bearing lines are
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

// WithActiveMode switches the data channel to active mode: the client
// listens and the server connects back (PORT/EPRT).
func WithActiveMode() Option {
	return func(c *Client) error {
		c.activeMode = true
		return nil
	}
}

// WithExtendedMode uses the extended data-channel commands (EPSV/EPRT),
// required for IPv6.
func WithExtendedMode() Option {
	return func(c *Client) error {
		c.extendedMode = true
		return nil
	}
}

// WithAllowDataRedirect permits the passive data connection to follow
// the address in the PASV reply instead of the control-channel peer.
// Off by default, guarding against FTP bounce.
func WithAllowDataRedirect() Option {
	return func(c *Client) error {
		c.allowRedirect = true
		return nil
	}
}

// WithDataPortReuse reuses the previously allocated active-mode port
// for writes, falling back to an ephemeral port when it is taken.
func WithDataPortReuse() Option {
	return func(c *Client) error {
		c.reuseDataPort = true
		return nil
	}
}

// WithProgress reports the running data-channel byte count to fn during
// uploads and downloads, for transfer progress display.
func WithProgress(fn func(bytesTransferred int64)) Option {
	return func(c *Client) error {
		c.progress = fn
		return nil
	}
}

// WithRateLimit throttles data-channel transfers to the given bytes
// per second.
func WithRateLimit(bytesPerSecond int64) Option {
	return func(c *Client) error {
		c.limiter = ratelimit.New(bytesPerSecond)
		return nil
	}
}
