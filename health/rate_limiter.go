package health

import (
	"sync"
	"time"
)

// RateLimiterConfig controls remesh backoff, per spec.md 4.3 "Rate limiting".
type RateLimiterConfig struct {
	MinRemeshInterval  time.Duration
	MaxRemeshInterval  time.Duration
	BackoffMultiplier  float64
	MaxConsecutive     int
	CooldownWindow     time.Duration
}

func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		MinRemeshInterval: 5 * time.Second,
		MaxRemeshInterval: 5 * time.Minute,
		BackoffMultiplier: 2.0,
		MaxConsecutive:    5,
		CooldownWindow:    time.Minute,
	}
}

// RemeshRateLimiter gates how often Remesh decisions may actually execute,
// applying exponential backoff and an extended cooldown after a burst of
// consecutive remeshes.
type RemeshRateLimiter struct {
	cfg RateLimiterConfig

	mu              sync.Mutex
	currentBackoff  time.Duration
	consecutive     int
	windowStart     time.Time
	lastExecuted    time.Time
	inCooldownUntil time.Time
}

func NewRemeshRateLimiter(cfg RateLimiterConfig) *RemeshRateLimiter {
	return &RemeshRateLimiter{cfg: cfg, currentBackoff: cfg.MinRemeshInterval}
}

// Allow reports whether a remesh may execute now, and if not, how long
// until it can.
func (r *RemeshRateLimiter) Allow(now time.Time) (ok bool, nextAllowedIn time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Before(r.inCooldownUntil) {
		return false, r.inCooldownUntil.Sub(now)
	}
	if !r.lastExecuted.IsZero() {
		readyAt := r.lastExecuted.Add(r.currentBackoff)
		if now.Before(readyAt) {
			return false, readyAt.Sub(now)
		}
	}
	return true, 0
}

// RecordExecution must be called after a remesh actually ran; it advances
// the backoff and tracks consecutive executions within CooldownWindow.
func (r *RemeshRateLimiter) RecordExecution(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.windowStart.IsZero() || now.Sub(r.windowStart) > r.cfg.CooldownWindow {
		r.windowStart = now
		r.consecutive = 0
	}
	r.consecutive++
	r.lastExecuted = now

	r.currentBackoff = time.Duration(float64(r.currentBackoff) * r.cfg.BackoffMultiplier)
	if r.currentBackoff > r.cfg.MaxRemeshInterval {
		r.currentBackoff = r.cfg.MaxRemeshInterval
	}

	if r.consecutive >= r.cfg.MaxConsecutive {
		r.inCooldownUntil = now.Add(r.cfg.CooldownWindow)
	}
}

// Reset restores current_backoff to MinRemeshInterval and clears the
// consecutive counter, per spec.md 4.3's reset_rate_limiting().
func (r *RemeshRateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentBackoff = r.cfg.MinRemeshInterval
	r.consecutive = 0
	r.inCooldownUntil = time.Time{}
}
