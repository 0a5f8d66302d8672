// Package tlsio is the TLS substrate shared by the protocol drivers.
// It builds client configurations from the process-wide control
// variables, performs handshakes under a deadline with SNI always set,
// maps verification failures to named kinds, and implements the double
// shutdown dance that real servers require.
package tlsio

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/holger24/AFD-sub000/config"
	"github.com/holger24/AFD-sub000/internal/netio"
)

// NewConfig builds a client tls.Config for serverName.
//
// The protocol floor, cipher list and trust roots come from settings
// (which mirror the SSL_CIPHER / cert-file / cert-dir environment).
// strict=false skips certificate verification; legacy enables insecure
// renegotiation for servers that still require it.
func NewConfig(serverName string, strict, legacy bool, settings *config.Settings) (*tls.Config, error) {
	if settings == nil {
		settings = config.Default()
	}

	cfg := &tls.Config{
		ServerName:         serverName,
		MinVersion:         settings.TLSMinVersion,
		InsecureSkipVerify: !strict,
	}
	if legacy {
		cfg.Renegotiation = tls.RenegotiateFreelyAsClient
	}

	if settings.CipherList != "" {
		suites, err := cipherSuites(settings.CipherList)
		if err != nil {
			return nil, err
		}
		cfg.CipherSuites = suites
	}

	roots, err := trustRoots(settings)
	if err != nil {
		return nil, err
	}
	cfg.RootCAs = roots

	return cfg, nil
}

// cipherSuites resolves a colon- or comma-separated cipher list against
// the suites this TLS stack knows. Unknown names are an error rather
// than a silent downgrade.
func cipherSuites(list string) ([]uint16, error) {
	known := make(map[string]uint16)
	for _, s := range tls.CipherSuites() {
		known[s.Name] = s.ID
	}
	for _, s := range tls.InsecureCipherSuites() {
		known[s.Name] = s.ID
	}

	var ids []uint16
	for _, name := range strings.FieldsFunc(list, func(r rune) bool { return r == ':' || r == ',' }) {
		id, ok := known[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("unknown cipher suite %q", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// trustRoots loads the CA pool from the configured cert file/dir pair,
// falling back to the system default verify paths.
func trustRoots(settings *config.Settings) (*x509.CertPool, error) {
	if settings.CertFile == "" && settings.CertDir == "" {
		return nil, nil // system defaults
	}

	pool := x509.NewCertPool()
	if settings.CertFile != "" {
		pem, err := os.ReadFile(settings.CertFile)
		if err != nil {
			return nil, fmt.Errorf("read cert file: %w", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in %s", settings.CertFile)
		}
	}
	if settings.CertDir != "" {
		entries, err := os.ReadDir(settings.CertDir)
		if err != nil {
			return nil, fmt.Errorf("read cert dir: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			pem, err := os.ReadFile(filepath.Join(settings.CertDir, e.Name()))
			if err != nil {
				continue
			}
			pool.AppendCertsFromPEM(pem)
		}
	}
	return pool, nil
}

// Client wraps conn in TLS and performs the handshake under timeout.
// The handshake log line records the negotiated version, the peer
// subject in RFC 2253 order and whether legacy renegotiation was
// enabled. On failure the socket is left to the caller to close.
func Client(conn net.Conn, cfg *tls.Config, timeout time.Duration, logger *slog.Logger) (*tls.Conn, error) {
	tlsConn := tls.Client(conn, cfg)

	if timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
		defer conn.SetDeadline(time.Time{})
	}

	if err := tlsConn.Handshake(); err != nil {
		if netio.IsTimeout(err) {
			return nil, netio.Classify("tls handshake", err)
		}
		return nil, classifyVerify(err)
	}

	if logger != nil {
		state := tlsConn.ConnectionState()
		attrs := []any{
			"version", tls.VersionName(state.Version),
			"cipher", tls.CipherSuiteName(state.CipherSuite),
			"sni", cfg.ServerName,
		}
		if len(state.PeerCertificates) > 0 {
			attrs = append(attrs, "subject", SubjectRDN(state.PeerCertificates[0]))
		}
		if cfg.Renegotiation == tls.RenegotiateFreelyAsClient {
			attrs = append(attrs, "legacy_renegotiation", true)
		}
		logger.Debug("tls handshake complete", attrs...)
	}

	return tlsConn, nil
}

// Shutdown performs the close-notify exchange. Many servers answer the
// client's close_notify with their own, which a single shutdown call
// will not observe; a short bounded read picks it up before the socket
// is closed.
func Shutdown(tlsConn *tls.Conn, timeout time.Duration) error {
	if err := tlsConn.CloseWrite(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	_ = tlsConn.SetReadDeadline(time.Now().Add(timeout))
	var buf [64]byte
	_, _ = tlsConn.Read(buf[:]) // drain the peer's close_notify, if any
	return nil
}

// SubjectRDN renders a certificate subject in RFC 2253 order (most
// specific RDN first), the form used in handshake log lines.
func SubjectRDN(cert *x509.Certificate) string {
	names := cert.Subject.Names
	parts := make([]string, 0, len(names))
	for i := len(names) - 1; i >= 0; i-- {
		n := names[i]
		parts = append(parts, fmt.Sprintf("%s=%v", attrName(n.Type.String()), n.Value))
	}
	return strings.Join(parts, ",")
}

func attrName(oid string) string {
	switch oid {
	case "2.5.4.3":
		return "CN"
	case "2.5.4.6":
		return "C"
	case "2.5.4.7":
		return "L"
	case "2.5.4.8":
		return "ST"
	case "2.5.4.10":
		return "O"
	case "2.5.4.11":
		return "OU"
	case "1.2.840.113549.1.9.1":
		return "E"
	default:
		return oid
	}
}
