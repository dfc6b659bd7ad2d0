package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kidshovel/marketplace-back/internal/domain"
	"github.com/kidshovel/marketplace-back/internal/ratelimit"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  []domain.Notification
	fail  bool
	fails int
}

func (s *recordingSender) Send(_ context.Context, notification domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		s.fails++
		return errors.New("provider unavailable")
	}
	s.sent = append(s.sent, notification)
	return nil
}

func (s *recordingSender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func testNotification(id string) domain.Notification {
	return domain.Notification{
		ID:          id,
		UserID:      "user-1",
		Type:        domain.NotificationTypeJobClaimed,
		Title:       "Your job was claimed",
		RequestedAt: time.Now().UTC(),
	}
}

func TestProcessorDeliversAndSuppressesRepeat(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{}
	processor := NewProcessor(nil, sender, ratelimit.NewMemoryLimiter(), 12*time.Hour, nil)

	if err := processor.processNotification(ctx, testNotification("n-1")); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if sender.sentCount() != 1 {
		t.Fatalf("expected 1 delivery, got %d", sender.sentCount())
	}

	// Same user and type inside the window: handled without sending.
	if err := processor.processNotification(ctx, testNotification("n-2")); err != nil {
		t.Fatalf("suppressed delivery should not error: %v", err)
	}
	if sender.sentCount() != 1 {
		t.Fatalf("expected repeat to be suppressed, got %d deliveries", sender.sentCount())
	}
}

func TestProcessorReleasesWindowOnSendFailure(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{fail: true}
	limiter := ratelimit.NewMemoryLimiter()
	processor := NewProcessor(nil, sender, limiter, 12*time.Hour, nil)

	if err := processor.processNotification(ctx, testNotification("n-1")); err == nil {
		t.Fatal("expected delivery error")
	}

	// The failed attempt must not consume the window for the retry.
	sender.mu.Lock()
	sender.fail = false
	sender.mu.Unlock()

	if err := processor.processNotification(ctx, testNotification("n-1")); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if sender.sentCount() != 1 {
		t.Fatalf("expected retry to deliver, got %d", sender.sentCount())
	}
}

func TestProcessorWithoutLimiterAlwaysDelivers(t *testing.T) {
	ctx := context.Background()
	sender := &recordingSender{}
	processor := NewProcessor(nil, sender, nil, 0, nil)

	for i := 0; i < 3; i++ {
		if err := processor.processNotification(ctx, testNotification("n-1")); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if sender.sentCount() != 3 {
		t.Fatalf("expected 3 deliveries, got %d", sender.sentCount())
	}
}
