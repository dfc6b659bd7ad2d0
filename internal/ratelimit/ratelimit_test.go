package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kidshovel/marketplace-back/internal/domain"
)

func newTestLimiter(start time.Time) (*MemoryLimiter, *time.Time) {
	current := start
	limiter := NewMemoryLimiter()
	limiter.now = func() time.Time { return current }
	return limiter, &current
}

func TestMemoryLimiterWindow(t *testing.T) {
	ctx := context.Background()
	limiter, clock := newTestLimiter(time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC))

	ok, err := limiter.CanNotify(ctx, "user-1", domain.NotificationTypeJobClaimed, 12*time.Hour)
	if err != nil {
		t.Fatalf("CanNotify: %v", err)
	}
	if !ok {
		t.Fatal("first notification should be allowed")
	}

	ok, _ = limiter.CanNotify(ctx, "user-1", domain.NotificationTypeJobClaimed, 12*time.Hour)
	if ok {
		t.Fatal("second notification inside the window should be blocked")
	}

	*clock = clock.Add(11 * time.Hour)
	ok, _ = limiter.CanNotify(ctx, "user-1", domain.NotificationTypeJobClaimed, 12*time.Hour)
	if ok {
		t.Fatal("notification at 11h should still be blocked")
	}

	*clock = clock.Add(2 * time.Hour)
	ok, _ = limiter.CanNotify(ctx, "user-1", domain.NotificationTypeJobClaimed, 12*time.Hour)
	if !ok {
		t.Fatal("notification after the window should be allowed")
	}
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(time.Now())

	if ok, _ := limiter.CanNotify(ctx, "user-1", domain.NotificationTypeJobClaimed, time.Hour); !ok {
		t.Fatal("first send for user-1 should pass")
	}
	if ok, _ := limiter.CanNotify(ctx, "user-2", domain.NotificationTypeJobClaimed, time.Hour); !ok {
		t.Fatal("different user must not share the window")
	}
	if ok, _ := limiter.CanNotify(ctx, "user-1", domain.NotificationTypeJobCompleted, time.Hour); !ok {
		t.Fatal("different type must not share the window")
	}
	if ok, _ := limiter.CanNotify(ctx, "user-1", domain.NotificationTypeJobClaimed, time.Hour); ok {
		t.Fatal("same pair inside the window should be blocked")
	}
}

func TestMemoryLimiterReset(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(time.Now())

	limiter.CanNotify(ctx, "user-1", domain.NotificationTypeWeatherAlert, time.Hour)
	if err := limiter.Reset(ctx, "user-1", domain.NotificationTypeWeatherAlert); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if ok, _ := limiter.CanNotify(ctx, "user-1", domain.NotificationTypeWeatherAlert, time.Hour); !ok {
		t.Fatal("reset should allow an immediate resend")
	}
}

func TestMemoryLimiterTimeUntilAllowed(t *testing.T) {
	ctx := context.Background()
	limiter, clock := newTestLimiter(time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC))

	remaining, err := limiter.TimeUntilAllowed(ctx, "user-1", domain.NotificationTypeJobStarted, 12*time.Hour)
	if err != nil {
		t.Fatalf("TimeUntilAllowed: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected zero before any send, got %v", remaining)
	}

	limiter.CanNotify(ctx, "user-1", domain.NotificationTypeJobStarted, 12*time.Hour)
	*clock = clock.Add(4 * time.Hour)

	remaining, _ = limiter.TimeUntilAllowed(ctx, "user-1", domain.NotificationTypeJobStarted, 12*time.Hour)
	if remaining != 8*time.Hour {
		t.Fatalf("expected 8h remaining, got %v", remaining)
	}

	*clock = clock.Add(9 * time.Hour)
	remaining, _ = limiter.TimeUntilAllowed(ctx, "user-1", domain.NotificationTypeJobStarted, 12*time.Hour)
	if remaining != 0 {
		t.Fatalf("expected zero after the window, got %v", remaining)
	}
}

func TestMemoryLimiterConcurrentSinglePass(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(time.Now())

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := limiter.CanNotify(ctx, "user-1", domain.NotificationTypePaymentReceived, time.Hour)
			if err != nil {
				t.Errorf("CanNotify: %v", err)
				return
			}
			if ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 1 {
		t.Fatalf("expected exactly one allowed send, got %d", allowed)
	}
}

func TestMemoryLimiterPurge(t *testing.T) {
	ctx := context.Background()
	limiter, clock := newTestLimiter(time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC))

	limiter.CanNotify(ctx, "user-1", domain.NotificationTypeJobClaimed, time.Hour)
	*clock = clock.Add(2 * time.Hour)
	limiter.Purge(time.Hour)

	limiter.mu.Lock()
	entries := len(limiter.lastSent)
	limiter.mu.Unlock()
	if entries != 0 {
		t.Fatalf("expected purged map, got %d entries", entries)
	}
}
