package netio

import (
	"fmt"
	"log/slog"
	"net"
	"time"
)

// DialFirst connects to the first reachable endpoint in addrs. Failure
// of a single endpoint moves on to the next one; a permanent refusal
// (policy-level, not network-level) ends the iteration immediately.
// The returned error carries the classification of the last failure.
func DialFirst(addrs []string, timeout time.Duration, logger *slog.Logger) (net.Conn, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("connect: empty address set")
	}

	var lastErr error
	for _, addr := range addrs {
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if logger != nil {
			logger.Debug("connect attempt failed", "addr", addr, "err", err)
		}
		if isPermanentDial(err) {
			break
		}
	}
	return nil, Classify("connect", lastErr)
}
