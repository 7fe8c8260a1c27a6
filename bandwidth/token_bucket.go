package bandwidth

import (
	"math"
	"sync"
	"time"
)

// maxSleepPerIteration caps how long a single request() iteration sleeps
// before re-checking tokens, per spec.md 4.4.
const maxSleepPerIteration = 100 * time.Millisecond

// TokenBucket paces bytes at rateBytesPerSec with burstCapacity headroom.
// rateBytesPerSec == 0 means unlimited: request/try never block or deny.
type TokenBucket struct {
	mu sync.Mutex

	rate   float64 // bytes/sec, 0 = unlimited
	burst  float64
	tokens float64
	last   time.Time
}

// NewTokenBucket creates a bucket starting full. burstCapacity <= 0
// defaults to 2x rate (spec.md 4.4); with rate == 0 burst is irrelevant.
func NewTokenBucket(rateBytesPerSec, burstCapacity float64) *TokenBucket {
	if burstCapacity <= 0 {
		burstCapacity = rateBytesPerSec * 2
	}
	return &TokenBucket{
		rate:   rateBytesPerSec,
		burst:  burstCapacity,
		tokens: burstCapacity,
		last:   time.Now(),
	}
}

// SetRate updates the rate (e.g. from congestion control) and clamps
// tokens to the (possibly new) burst capacity.
func (b *TokenBucket) SetRate(rateBytesPerSec float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	b.rate = rateBytesPerSec
	if b.burst < rateBytesPerSec {
		b.burst = rateBytesPerSec * 2
	}
	if b.tokens > b.burst {
		b.tokens = b.burst
	}
}

func (b *TokenBucket) Rate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rate
}

func (b *TokenBucket) refillLocked() {
	now := time.Now()
	elapsedUs := float64(now.Sub(b.last).Microseconds())
	b.last = now
	if b.rate <= 0 {
		return
	}
	b.tokens += b.rate * elapsedUs / 1e6
	if b.tokens > b.burst {
		b.tokens = b.burst
	}
}

// Request blocks until n bytes' worth of tokens are available, or ctx-less
// cancellation via the stop channel fires. Returns false if stopped before
// tokens became available.
func (b *TokenBucket) Request(n float64, stop <-chan struct{}) bool {
	for {
		b.mu.Lock()
		if b.rate <= 0 {
			b.mu.Unlock()
			return true
		}
		b.refillLocked()
		if b.tokens >= n {
			b.tokens -= n
			b.mu.Unlock()
			return true
		}
		deficit := n - b.tokens
		rate := b.rate
		b.mu.Unlock()

		sleep := time.Duration(deficit / rate * float64(time.Second))
		if sleep > maxSleepPerIteration {
			sleep = maxSleepPerIteration
		}
		if stop == nil {
			time.Sleep(sleep)
			continue
		}
		select {
		case <-stop:
			return false
		case <-time.After(sleep):
		}
	}
}

// Try is the non-blocking variant: returns min(n, floor(tokens)) and
// deducts exactly that amount.
func (b *TokenBucket) Try(n float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rate <= 0 {
		return n
	}
	b.refillLocked()
	grant := math.Min(n, math.Floor(b.tokens))
	if grant < 0 {
		grant = 0
	}
	b.tokens -= grant
	return grant
}
