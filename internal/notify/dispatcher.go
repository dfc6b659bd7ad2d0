package notify

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/kidshovel/marketplace-back/internal/domain"
	"github.com/kidshovel/marketplace-back/internal/queue"
)

// Dispatcher builds notifications and hands them to the queue. Enqueue
// failures are logged and swallowed so job and rating flows never fail
// because a notification could not be queued.
type Dispatcher struct {
	producer queue.Producer
	logger   *log.Logger
}

func NewDispatcher(producer queue.Producer, logger *log.Logger) *Dispatcher {
	return &Dispatcher{producer: producer, logger: logger}
}

func (d *Dispatcher) Dispatch(ctx context.Context, userID string, kind domain.NotificationType, title, body string, metadata map[string]string) {
	if d == nil || d.producer == nil {
		return
	}

	notification := domain.Notification{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        kind,
		Title:       title,
		Body:        body,
		Metadata:    metadata,
		RequestedAt: time.Now().UTC(),
	}

	if err := d.producer.Enqueue(ctx, notification); err != nil && d.logger != nil {
		d.logger.Printf("notification enqueue failed user_id=%s type=%s err=%v", userID, kind, err)
	}
}

// JobMetadata is the metadata attached to every job lifecycle notification.
func JobMetadata(jobID string) map[string]string {
	return map[string]string{"job_id": jobID}
}
