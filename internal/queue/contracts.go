package queue

import (
	"context"

	"github.com/kidshovel/marketplace-back/internal/domain"
)

// Producer sends notifications to a dispatch queue backend.
type Producer interface {
	Enqueue(ctx context.Context, notification domain.Notification) error
}

// Consumer receives queued notifications and executes handlers.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, domain.Notification) error) error
}
