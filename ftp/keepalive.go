package ftp

import "time"

// startKeepAlive sends NOOP when the control channel has been idle for
// the configured idle timeout, so servers do not drop the session
// between transfers. Disabled when no idle timeout is set.
func (c *Client) startKeepAlive() {
	if c.idleTimeout == 0 {
		return
	}

	c.quitChan = make(chan struct{})
	ticker := time.NewTicker(c.idleTimeout / 2)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.mu.Lock()
				transferring := c.data != nil
				last := c.lastCommand
				c.mu.Unlock()
				if transferring {
					continue
				}
				if time.Since(last) >= c.idleTimeout {
					c.logger.Debug("sending keep-alive NOOP")
					// The connection may already be gone; the next real
					// command will surface that.
					_ = c.Noop()
				}
			case <-c.quitChan:
				return
			}
		}
	}()
}
