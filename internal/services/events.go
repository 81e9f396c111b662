package services

import (
	"context"

	log "github.com/sirupsen/logrus"

	"marketplace/internal/models"
)

// EventPublisher delivers order events to other processes.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

// publishOrderEvent sends event if a publisher is configured. Failures are
// logged and never reach the caller: the order is already committed.
func publishOrderEvent(ctx context.Context, events EventPublisher, event models.OrderEvent) {
	if events == nil {
		return
	}
	if err := events.PublishOrderEvent(ctx, event); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"order_id": event.OrderID,
			"type":     event.Type,
		}).Warn("failed to publish order event")
	}
}
