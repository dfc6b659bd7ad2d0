package queue

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/kidshovel/marketplace-back/internal/domain"
)

// LocalQueue is a fallback queue used when Redis is not configured.
type LocalQueue struct {
	ch          chan domain.Notification
	maxAttempts int
	logger      *log.Logger

	dlqMu sync.Mutex
	dlq   []domain.Notification
}

func NewLocalQueue(bufferSize, maxAttempts int, logger *log.Logger) *LocalQueue {
	if bufferSize <= 0 {
		bufferSize = 512
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &LocalQueue{
		ch:          make(chan domain.Notification, bufferSize),
		maxAttempts: maxAttempts,
		logger:      logger,
		dlq:         make([]domain.Notification, 0),
	}
}

func (q *LocalQueue) Enqueue(ctx context.Context, notification domain.Notification) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- notification:
		return nil
	}
}

func (q *LocalQueue) EnqueueBatch(ctx context.Context, notifications []domain.Notification) error {
	for _, notification := range notifications {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case q.ch <- notification:
		}
	}
	return nil
}

func (q *LocalQueue) Consume(ctx context.Context, handler func(context.Context, domain.Notification) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notification := <-q.ch:
			err := handler(ctx, notification)
			if err == nil {
				continue
			}

			notification.Attempt++
			if notification.Attempt >= q.maxAttempts {
				q.dlqMu.Lock()
				q.dlq = append(q.dlq, notification)
				q.dlqMu.Unlock()
				if q.logger != nil {
					q.logger.Printf("local queue moved notification to DLQ id=%s user_id=%s err=%v", notification.ID, notification.UserID, err)
				}
				continue
			}

			delay := time.Duration(notification.Attempt) * 500 * time.Millisecond
			go func(retry domain.Notification) {
				timer := time.NewTimer(delay)
				defer timer.Stop()
				select {
				case <-ctx.Done():
					return
				case <-timer.C:
					q.ch <- retry
				}
			}(notification)
		}
	}
}

func (q *LocalQueue) DLQSize() int {
	q.dlqMu.Lock()
	defer q.dlqMu.Unlock()
	return len(q.dlq)
}
