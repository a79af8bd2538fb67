// Package ratelimit limits how fast requests are issued to the control-plane
// service using a token bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cs2interlink/cs2-int/internal/constants"
	"github.com/cs2interlink/cs2-int/internal/logging"
)

// RateLimiter is a token bucket shared by every request to one IPC host.
// A cooldown set after a 429 suspends grants regardless of the bucket.
type RateLimiter struct {
	mu sync.Mutex

	tokens   float64
	capacity float64
	perSec   float64
	updated  time.Time

	cooldownUntil time.Time
	warnedAt      time.Time
	log           *logging.Logger
}

// NewRateLimiter returns a full bucket of burst tokens refilled at perSec.
func NewRateLimiter(perSec, burst float64) *RateLimiter {
	return &RateLimiter{
		tokens:   burst,
		capacity: burst,
		perSec:   perSec,
		updated:  time.Now(),
		log:      logging.NewNopLogger(),
	}
}

// NewServiceRateLimiter creates the limiter shared by all calls to one
// service host.
//
// Target Rate: constants.ASFRatePerSec
//   - The service serializes game-coordinator requests per bot, so issuing
//     faster only queues work server-side and turns into 504s
//
// Burst Capacity: constants.ASFBurstCapacity
//   - Covers a table load (bots, status, inventory, a few crates) without waiting
func NewServiceRateLimiter() *RateLimiter {
	return NewRateLimiter(constants.ASFRatePerSec, constants.ASFBurstCapacity)
}

// SetLogger sets the logger used for rate limit warnings.
func (rl *RateLimiter) SetLogger(log *logging.Logger) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if log != nil {
		rl.log = log
	}
}

// Wait blocks until a request may be issued or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.tryAcquire() {
		return nil
	}

	began := time.Now()
	rl.warnIfSlow(rl.nextGrant())

	timer := time.NewTimer(rl.nextGrant())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		if rl.tryAcquire() {
			if waited := time.Since(began); waited > 5*time.Second {
				rl.log.Info().Dur("waited", waited).Msg("IPC request slot granted")
			}
			return nil
		}
		timer.Reset(rl.nextGrant())
	}
}

// warnIfSlow logs at most one warning every 10s when a wait is long.
func (rl *RateLimiter) warnIfSlow(d time.Duration) {
	if d <= 2*time.Second {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if time.Since(rl.warnedAt) < 10*time.Second {
		return
	}
	rl.warnedAt = time.Now()
	rl.log.Warn().Dur("wait", d).Msg("IPC server is rate limiting requests")
}

func (rl *RateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.refill(now)
	if now.Before(rl.cooldownUntil) || rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}

// refill credits tokens for the time since the last update. Callers hold mu.
func (rl *RateLimiter) refill(now time.Time) {
	rl.tokens = min(rl.capacity, rl.tokens+now.Sub(rl.updated).Seconds()*rl.perSec)
	rl.updated = now
}

// nextGrant estimates how long until tryAcquire can succeed.
func (rl *RateLimiter) nextGrant() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if cd := time.Until(rl.cooldownUntil); cd > 0 {
		return cd
	}
	missing := 1 - rl.tokens
	switch {
	case missing <= 0:
		return time.Millisecond
	case rl.perSec <= 0:
		return time.Second
	}
	return time.Duration(missing / rl.perSec * float64(time.Second))
}

// Drain empties the bucket so the next caller waits for a refill.
func (rl *RateLimiter) Drain() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = 0
	rl.updated = time.Now()
}

// SetCooldown blocks token grants for d. A shorter cooldown never
// shortens one already in effect.
func (rl *RateLimiter) SetCooldown(d time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	until := time.Now().Add(d)
	if until.After(rl.cooldownUntil) {
		rl.cooldownUntil = until
	}
}

// CooldownRemaining returns how long the current cooldown lasts, or 0.
func (rl *RateLimiter) CooldownRemaining() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return max(0, time.Until(rl.cooldownUntil))
}

// GetCurrentTokens reports the bucket level as of now.
func (rl *RateLimiter) GetCurrentTokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return min(rl.capacity, rl.tokens+time.Since(rl.updated).Seconds()*rl.perSec)
}
