// Package ipdb defines the IP-database collaborator consulted by the
// resolver when a host name stops resolving. The database itself lives
// outside this module; callers plug in their own implementation.
package ipdb

// Database caches the last known address of remote hosts. It is used
// only when name resolution fails with a recoverable code, and to store
// the address of the first successful connect.
//
// Implementations must be safe for concurrent use; the resolver may be
// shared between connection handles.
type Database interface {
	// Lookup returns the cached IP for host, if any.
	Lookup(host string) (ip string, ok bool)

	// Store records ip as the current address of host.
	Store(host, ip string)

	// Enabled reports whether the database should be consulted at all.
	Enabled() bool

	// ShouldStore reports whether successful connects should be cached.
	ShouldStore() bool
}

// Nop is a Database that holds nothing.
type Nop struct{}

func (Nop) Lookup(string) (string, bool) { return "", false }
func (Nop) Store(string, string)         {}
func (Nop) Enabled() bool                { return false }
func (Nop) ShouldStore() bool            { return false }
