// Package config reads the process-wide control variables from the
// environment. These are read once at process start and shared, read
// only, by every connection handle.
package config

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Settings are the control variables consulted by the socket layer and
// the TLS substrate.
type Settings struct {
	// DisableIPv6 restricts name resolution to IPv4.
	DisableIPv6 bool

	// TransferTimeout bounds every socket read, write, connect and
	// handshake.
	TransferTimeout time.Duration

	// TLSMinVersion is the protocol floor (a tls.VersionTLSxx constant).
	TLSMinVersion uint16

	// CipherList is the cipher list from SSL_CIPHER.
	CipherList string

	// CertFile and CertDir are the CA trust roots; empty means the
	// system default verify paths.
	CertFile string
	CertDir  string

	// Simulation replaces real sockets with scripted ones.
	Simulation bool
}

// Default returns the built-in settings: dual-stack resolution, a
// 30 second transfer timeout and a TLS 1.2 floor.
func Default() *Settings {
	return &Settings{
		TransferTimeout: 30 * time.Second,
		TLSMinVersion:   tls.VersionTLS12,
	}
}

// Load reads the settings from the environment. Variables use the AFD_
// prefix (AFD_DISABLE_IPV6, AFD_TRANSFER_TIMEOUT, AFD_TLS_MIN_VERSION,
// AFD_SIMULATION); the TLS trust variables keep their conventional
// OpenSSL names (SSL_CIPHER, SSL_CERT_FILE, SSL_CERT_DIR).
func Load() (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("AFD")
	v.AutomaticEnv()

	v.SetDefault("transfer_timeout", "30s")
	v.SetDefault("tls_min_version", "1.2")

	// AutomaticEnv only resolves keys viper has seen; register the
	// env-only ones so Get finds them.
	_ = v.BindEnv("disable_ipv6")
	_ = v.BindEnv("simulation")

	// The OpenSSL-compatible names are bound without the prefix.
	_ = v.BindEnv("cipher_list", "SSL_CIPHER")
	_ = v.BindEnv("cert_file", "SSL_CERT_FILE")
	_ = v.BindEnv("cert_dir", "SSL_CERT_DIR")

	s := Default()
	s.DisableIPv6 = v.GetBool("disable_ipv6")
	s.Simulation = v.GetBool("simulation")
	s.CipherList = v.GetString("cipher_list")
	s.CertFile = v.GetString("cert_file")
	s.CertDir = v.GetString("cert_dir")
	s.TransferTimeout = v.GetDuration("transfer_timeout")
	if s.TransferTimeout <= 0 {
		return nil, fmt.Errorf("config: transfer timeout must be positive")
	}

	floor, err := ParseTLSVersion(v.GetString("tls_min_version"))
	if err != nil {
		return nil, err
	}
	s.TLSMinVersion = floor

	return s, nil
}

// ParseTLSVersion maps a version-floor name to its tls constant.
// Accepted: "ssl3", "1.0", "1.1", "1.2" (and "tls1", "tls1.1",
// "tls1.2" spellings).
func ParseTLSVersion(name string) (uint16, error) {
	switch name {
	case "", "1.2", "tls1.2":
		return tls.VersionTLS12, nil
	case "1.1", "tls1.1":
		return tls.VersionTLS11, nil
	case "1.0", "tls1", "tls1.0":
		return tls.VersionTLS10, nil
	case "ssl3", "sslv3":
		// SSLv3 is gone from modern stacks; the lowest honoured floor
		// is TLS 1.0.
		return tls.VersionTLS10, nil
	default:
		return 0, fmt.Errorf("config: unknown TLS version floor %q", name)
	}
}
