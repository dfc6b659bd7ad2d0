// Package ratelimit throttles per-user notifications so the same kind of
// alert is not delivered more than once per window.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/kidshovel/marketplace-back/internal/domain"
)

// DefaultWindow is how long one notification of a given type suppresses the
// next one for the same user.
const DefaultWindow = 12 * time.Hour

// NotificationLimiter gates notification delivery per (user, type) pair.
type NotificationLimiter interface {
	// CanNotify reports whether a notification may be sent now and, when it
	// may, atomically records the send so concurrent callers cannot both
	// pass for the same pair.
	CanNotify(ctx context.Context, userID string, kind domain.NotificationType, window time.Duration) (bool, error)
	// Reset clears the pair so the next CanNotify passes immediately.
	Reset(ctx context.Context, userID string, kind domain.NotificationType) error
	// TimeUntilAllowed returns how long until the pair is allowed again,
	// zero when it is allowed now. It never records a send.
	TimeUntilAllowed(ctx context.Context, userID string, kind domain.NotificationType, window time.Duration) (time.Duration, error)
}

func limiterKey(userID string, kind domain.NotificationType) string {
	return userID + ":" + string(kind)
}

// MemoryLimiter keeps last-sent stamps in process. Suitable for a single
// instance; multi-instance deployments use RedisLimiter.
type MemoryLimiter struct {
	mu       sync.Mutex
	lastSent map[string]time.Time
	now      func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		lastSent: make(map[string]time.Time),
		now:      time.Now,
	}
}

func (l *MemoryLimiter) CanNotify(_ context.Context, userID string, kind domain.NotificationType, window time.Duration) (bool, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	key := limiterKey(userID, kind)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if sent, ok := l.lastSent[key]; ok && now.Sub(sent) < window {
		return false, nil
	}
	l.lastSent[key] = now
	return true, nil
}

func (l *MemoryLimiter) Reset(_ context.Context, userID string, kind domain.NotificationType) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.lastSent, limiterKey(userID, kind))
	return nil
}

func (l *MemoryLimiter) TimeUntilAllowed(_ context.Context, userID string, kind domain.NotificationType, window time.Duration) (time.Duration, error) {
	if window <= 0 {
		window = DefaultWindow
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sent, ok := l.lastSent[limiterKey(userID, kind)]
	if !ok {
		return 0, nil
	}
	remaining := window - l.now().Sub(sent)
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// Purge drops entries whose window already elapsed, bounding memory on
// long-running processes.
func (l *MemoryLimiter) Purge(window time.Duration) {
	if window <= 0 {
		window = DefaultWindow
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, sent := range l.lastSent {
		if now.Sub(sent) >= window {
			delete(l.lastSent, key)
		}
	}
}
