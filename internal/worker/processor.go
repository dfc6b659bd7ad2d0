package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kidshovel/marketplace-back/internal/domain"
	"github.com/kidshovel/marketplace-back/internal/notify"
	"github.com/kidshovel/marketplace-back/internal/queue"
	"github.com/kidshovel/marketplace-back/internal/ratelimit"
)

// Processor drains the notification queue and delivers through the sender.
// A delivery suppressed by the rate limiter is treated as handled, not as a
// failure to retry.
type Processor struct {
	consumer queue.Consumer
	sender   notify.Sender
	limiter  ratelimit.NotificationLimiter
	window   time.Duration
	logger   *log.Logger
}

func NewProcessor(
	consumer queue.Consumer,
	sender notify.Sender,
	limiter ratelimit.NotificationLimiter,
	window time.Duration,
	logger *log.Logger,
) *Processor {
	if window <= 0 {
		window = ratelimit.DefaultWindow
	}
	return &Processor{
		consumer: consumer,
		sender:   sender,
		limiter:  limiter,
		window:   window,
		logger:   logger,
	}
}

func (p *Processor) Start(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := p.consumer.Consume(ctx, p.processNotification)
		if err == nil || ctx.Err() != nil {
			return
		}
		if p.logger != nil {
			p.logger.Printf("worker consume loop error: %v", err)
		}

		timer := time.NewTimer(2 * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (p *Processor) processNotification(ctx context.Context, notification domain.Notification) error {
	if p.limiter != nil {
		allowed, err := p.limiter.CanNotify(ctx, notification.UserID, notification.Type, p.window)
		if err != nil {
			return fmt.Errorf("rate limit check for %s: %w", notification.ID, err)
		}
		if !allowed {
			if p.logger != nil {
				p.logger.Printf("notification suppressed user_id=%s type=%s id=%s", notification.UserID, notification.Type, notification.ID)
			}
			return nil
		}
	}

	if err := p.sender.Send(ctx, notification); err != nil {
		// Give the next attempt a chance to deliver inside the same window.
		if p.limiter != nil {
			_ = p.limiter.Reset(ctx, notification.UserID, notification.Type)
		}
		return fmt.Errorf("deliver notification %s: %w", notification.ID, err)
	}

	if p.logger != nil {
		p.logger.Printf("notification delivered user_id=%s type=%s id=%s", notification.UserID, notification.Type, notification.ID)
	}
	return nil
}
