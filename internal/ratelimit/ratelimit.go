// Package ratelimit throttles data-channel transfers with a token
// bucket, so one host's bulk traffic cannot saturate the link the
// control channels share.
package ratelimit

import (
	"io"
	"sync"
	"time"
)

// Limiter is a token bucket sized to one second of traffic, which
// permits short bursts while holding the average rate.
type Limiter struct {
	rate       float64 // bytes per second
	burst      float64
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

// New returns a limiter for the given rate, or nil (unlimited) when
// the rate is not positive. A nil *Limiter is valid everywhere in this
// package and throttles nothing.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	rate := float64(bytesPerSecond)
	return &Limiter{
		rate:       rate,
		burst:      rate,
		tokens:     rate,
		lastUpdate: time.Now(),
	}
}

// take consumes n tokens, sleeping for the shortfall. The sleep is
// capped at one second so a huge request cannot stall a transfer
// indefinitely; the debt is forgiven rather than carried.
func (rl *Limiter) take(n int) {
	if rl == nil || n <= 0 {
		return
	}

	rl.mu.Lock()
	rl.refill()

	need := float64(n)
	if rl.tokens >= need {
		rl.tokens -= need
		rl.mu.Unlock()
		return
	}

	wait := time.Duration((need - rl.tokens) / rl.rate * float64(time.Second))
	if wait > time.Second {
		wait = time.Second
	}
	rl.mu.Unlock()

	time.Sleep(wait)

	rl.mu.Lock()
	rl.refill()
	if rl.tokens >= need {
		rl.tokens -= need
	} else {
		rl.tokens = 0
	}
	rl.mu.Unlock()
}

// refill adds tokens for the elapsed time. Caller holds mu.
func (rl *Limiter) refill() {
	now := time.Now()
	rl.tokens += now.Sub(rl.lastUpdate).Seconds() * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
	rl.lastUpdate = now
}

type reader struct {
	r       io.Reader
	limiter *Limiter
}

// NewReader throttles r. A nil limiter returns r unchanged.
func NewReader(r io.Reader, limiter *Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &reader{r: r, limiter: limiter}
}

func (r *reader) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	// small chunks keep the delivered rate close to the configured one
	const maxChunk = 8 * 1024
	readSize := len(p)
	if readSize > maxChunk {
		readSize = maxChunk
	}
	r.limiter.take(readSize)
	return r.r.Read(p[:readSize])
}

type writer struct {
	w       io.Writer
	limiter *Limiter
}

// NewWriter throttles w. A nil limiter returns w unchanged.
func NewWriter(w io.Writer, limiter *Limiter) io.Writer {
	if limiter == nil {
		return w
	}
	return &writer{w: w, limiter: limiter}
}

func (w *writer) Write(p []byte) (n int, err error) {
	const maxChunk = 64 * 1024

	total := 0
	for total < len(p) {
		chunk := len(p) - total
		if chunk > maxChunk {
			chunk = maxChunk
		}
		// tokens are taken before the write to apply backpressure
		w.limiter.take(chunk)

		written, err := w.w.Write(p[total : total+chunk])
		total += written
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
