// Package netio is the timeout-bounded socket layer shared by the
// protocol drivers: name resolution with address-family preference,
// connect iteration over the resolved address set, and per-operation
// read/write deadlines.
package netio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/holger24/AFD-sub000/ipdb"
)

// Resolver resolves host names to an ordered address set. When a lookup
// fails with a recoverable code and the IP database holds an address for
// the host, the cached literal is used instead.
type Resolver struct {
	// DisableIPv6 restricts resolution to IPv4 addresses.
	DisableIPv6 bool

	// Database is the optional IP-database collaborator.
	Database ipdb.Database

	// Logger is used for debug logging. May be nil.
	Logger *slog.Logger

	// lookupIP allows tests to stub the DNS lookup.
	lookupIP func(ctx context.Context, host string) ([]net.IP, error)
}

func (r *Resolver) lookup(ctx context.Context, host string) ([]net.IP, error) {
	if r.lookupIP != nil {
		return r.lookupIP(ctx, host)
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		ips = append(ips, a.IP)
	}
	return ips, nil
}

// Resolve returns the ordered "host:port" endpoints for host. An IP
// literal is returned as-is. IPv6 addresses are dropped when DisableIPv6
// is set.
func (r *Resolver) Resolve(ctx context.Context, host, port string) ([]string, error) {
	if ip := net.ParseIP(host); ip != nil {
		if r.DisableIPv6 && ip.To4() == nil {
			return nil, fmt.Errorf("resolve %s: IPv6 disabled", host)
		}
		return []string{net.JoinHostPort(host, port)}, nil
	}

	ips, err := r.lookup(ctx, host)
	if err != nil {
		if cached, ok := r.fallback(host, err); ok {
			if r.Logger != nil {
				r.Logger.Debug("dns lookup failed, using cached address",
					"host", host, "addr", cached, "err", err)
			}
			ips = []net.IP{cached}
		} else {
			return nil, fmt.Errorf("resolve %s: %w", host, err)
		}
	}

	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		if r.DisableIPv6 && ip.To4() == nil {
			continue
		}
		addrs = append(addrs, net.JoinHostPort(ip.String(), port))
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("resolve %s: no usable addresses", host)
	}
	return addrs, nil
}

// fallback consults the IP database after a recoverable lookup failure
// (host not found, temporary resolver trouble, resolver misconfiguration).
func (r *Resolver) fallback(host string, lookupErr error) (net.IP, bool) {
	if r.Database == nil || !r.Database.Enabled() {
		return nil, false
	}
	var dnsErr *net.DNSError
	if !errors.As(lookupErr, &dnsErr) {
		return nil, false
	}
	if !dnsErr.IsNotFound && !dnsErr.IsTemporary && !dnsErr.IsTimeout {
		return nil, false
	}
	addr, ok := r.Database.Lookup(host)
	if !ok {
		return nil, false
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return nil, false
	}
	return ip, true
}

// Connected records a successful connect in the IP database so the next
// resolution failure can fall back to it.
func (r *Resolver) Connected(host, addr string) {
	if r.Database == nil || !r.Database.Enabled() || !r.Database.ShouldStore() {
		return
	}
	ip, _, err := net.SplitHostPort(addr)
	if err != nil {
		return
	}
	r.Database.Store(host, ip)
}

// SplitPort validates a numeric port and returns it as a string.
func SplitPort(port int) (string, error) {
	if port <= 0 || port > 65535 {
		return "", fmt.Errorf("invalid port %d", port)
	}
	return strconv.Itoa(port), nil
}
