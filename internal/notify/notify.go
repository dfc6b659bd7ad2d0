// Package notify delivers user-facing notifications. Delivery is best-effort:
// failures are retried by the queue and eventually dead-lettered, never
// surfaced to the operation that triggered them.
package notify

import (
	"context"
	"log"

	"github.com/kidshovel/marketplace-back/internal/domain"
)

// Sender delivers one notification to its recipient through a concrete
// channel (push, SMS, email). Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, notification domain.Notification) error
}

// LogSender writes notifications to the process log. It is the default sender
// for local development and keeps the dispatch pipeline exercised without an
// external provider.
type LogSender struct {
	logger *log.Logger
}

func NewLogSender(logger *log.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, notification domain.Notification) error {
	if s.logger != nil {
		s.logger.Printf("notify user_id=%s type=%s title=%q", notification.UserID, notification.Type, notification.Title)
	}
	return nil
}
