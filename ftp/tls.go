package ftp

import (
	"crypto/tls"
	"fmt"

	"github.com/holger24/AFD-sub000/internal/lineio"
	"github.com/holger24/AFD-sub000/internal/netio"
	"github.com/holger24/AFD-sub000/tlsio"
)

// AuthTLS upgrades the control channel with AUTH TLS (RFC 4217). The
// server accepts with 234 (or the older 334).
func (c *Client) AuthTLS() error {
	reply, err := c.command("AUTH TLS")
	if err != nil {
		return err
	}
	if reply.Code != 234 && reply.Code != 334 {
		return &ProtocolError{Command: "AUTH TLS", Reply: reply.FirstLine(), Code: reply.Code}
	}
	if c.simulated {
		return nil
	}

	cfg, err := c.clientTLSConfig()
	if err != nil {
		return err
	}
	tlsConn, err := tlsio.Client(c.controlConn(), cfg, c.timeout, c.logger)
	if err != nil {
		return err
	}
	c.tlsConfig = cfg
	c.conn = &netio.DeadlineConn{Conn: tlsConn, Timeout: c.timeout}
	c.reader = lineio.NewReader(c.conn)
	return nil
}

// InitProt negotiates data-channel protection: PBSZ 0 followed by
// PROT P (both channels encrypted) or PROT C (control only).
func (c *Client) InitProt(controlOnly bool) error {
	if _, err := c.expectCode(200, "PBSZ 0"); err != nil {
		return fmt.Errorf("PBSZ failed: %w", err)
	}
	level := "P"
	if controlOnly {
		level = "C"
	}
	if _, err := c.expectCode(200, "PROT %s", level); err != nil {
		return fmt.Errorf("PROT failed: %w", err)
	}
	c.protData = !controlOnly
	return nil
}

// ClearCommandChannel downgrades the control channel back to plaintext
// with CCC (RFC 4217), for NAT devices that must rewrite PORT/PASV
// lines. The data channel keeps whatever PROT level was negotiated.
func (c *Client) ClearCommandChannel() error {
	if _, err := c.expectCode(200, "CCC"); err != nil {
		return err
	}
	if c.simulated {
		return nil
	}
	tlsConn, ok := c.controlConn().(*tls.Conn)
	if !ok {
		return fmt.Errorf("ftp: CCC on a plaintext control channel")
	}
	// close_notify exchange without closing the TCP socket underneath
	if err := tlsio.Shutdown(tlsConn, c.timeout); err != nil {
		return err
	}
	c.conn = &netio.DeadlineConn{Conn: tlsConn.NetConn(), Timeout: c.timeout}
	c.reader = lineio.NewReader(c.conn)
	return nil
}

// clientTLSConfig builds the session's TLS configuration with
// SNI set to the configured host.
func (c *Client) clientTLSConfig() (*tls.Config, error) {
	if c.tlsConfig != nil {
		return c.tlsConfig, nil
	}
	cfg, err := tlsio.NewConfig(c.host, c.strict, c.legacy, c.settings)
	if err != nil {
		return nil, err
	}
	// Session resumption lets the data channel reuse the control
	// channel's session, which many servers require.
	if cfg.ClientSessionCache == nil {
		cfg.ClientSessionCache = tls.NewLRUClientSessionCache(0)
	}
	return cfg, nil
}
