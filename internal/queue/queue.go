package queue

import (
	"context"

	"github.com/example/notify-queue-consumer/internal/models"
)

// Queue hands out one item at a time and acknowledges it on Delete. Next
// returns nil, nil when nothing is waiting. An item that is never deleted is
// redelivered by the broker.
type Queue interface {
	Next(ctx context.Context) (*models.QueueItem, error)
	Delete(ctx context.Context, item *models.QueueItem) error
}
