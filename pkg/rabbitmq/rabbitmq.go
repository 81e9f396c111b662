package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	amqp "github.com/streadway/amqp"

	"marketplace/internal/models"
)

// OrderQueue is the durable queue carrying order events.
const OrderQueue = "order_queue"

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL string
}

// NewClient connects to RabbitMQ, opens a channel and declares the order queue.
func NewClient(cfg Config) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to RabbitMQ")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to open channel")
	}

	if err := declareOrderQueue(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	log.WithField("queue", OrderQueue).Info("RabbitMQ client connected")
	return &Client{conn: conn, channel: ch}, nil
}

func declareOrderQueue(ch *amqp.Channel) error {
	_, err := ch.QueueDeclare(
		OrderQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	return errors.Wrapf(err, "failed to declare %s", OrderQueue)
}

// Close closes the channel and then the connection.
func (c *Client) Close() error {
	var firstErr error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			firstErr = errors.Wrap(err, "failed to close channel")
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "failed to close connection")
		}
	}
	return firstErr
}

// NewPublishing encodes event as a persistent JSON message.
func NewPublishing(event models.OrderEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, errors.Wrap(err, "failed to marshal order event")
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		Type:         event.Type,
		MessageId:    event.OrderID + ":" + event.Type + ":" + string(event.Status),
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
	}, nil
}

// DecodeOrderEvent parses a delivered message body.
func DecodeOrderEvent(body []byte) (models.OrderEvent, error) {
	var event models.OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return event, errors.Wrap(err, "failed to decode order event")
	}
	if event.Type == "" || event.OrderID == "" {
		return event, errors.New("order event is missing type or order id")
	}
	return event, nil
}

// PublishOrderEvent publishes event to the order queue via the default exchange.
func (c *Client) PublishOrderEvent(_ context.Context, event models.OrderEvent) error {
	if c.channel == nil {
		return errors.New("RabbitMQ channel is not available")
	}
	msg, err := NewPublishing(event)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.channel.Publish("", OrderQueue, false, false, msg); err != nil {
		return errors.Wrap(err, "failed to publish message")
	}

	log.WithFields(log.Fields{"order_id": event.OrderID, "type": event.Type}).Debug("order event published")
	return nil
}

// OrderEventHandler processes one decoded order event.
type OrderEventHandler func(ctx context.Context, event models.OrderEvent) error

// ConsumeOrderEvents delivers order events to handler until ctx is cancelled
// or the channel closes. Messages are acked on success; handler failures are
// requeued once, undecodable messages are dropped.
func (c *Client) ConsumeOrderEvents(ctx context.Context, handler OrderEventHandler) error {
	if c.channel == nil {
		return errors.New("RabbitMQ channel is not available for consumption")
	}
	if err := declareOrderQueue(c.channel); err != nil {
		return err
	}

	msgs, err := c.channel.Consume(
		OrderQueue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return errors.Wrap(err, "failed to register consumer")
	}

	log.WithField("queue", OrderQueue).Info("waiting for order events")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			handleDelivery(ctx, msg, handler)
		}
	}
}

// acknowledger is the subset of amqp.Delivery used to settle a message.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func handleDelivery(ctx context.Context, msg amqp.Delivery, handler OrderEventHandler) {
	settle(ctx, &msg, msg.Body, msg.Redelivered, handler)
}

func settle(ctx context.Context, ack acknowledger, body []byte, redelivered bool, handler OrderEventHandler) {
	entry := log.WithField("queue", OrderQueue)

	event, err := DecodeOrderEvent(body)
	if err != nil {
		entry.WithError(err).Warn("dropping malformed order event")
		if nackErr := ack.Nack(false, false); nackErr != nil {
			entry.WithError(nackErr).Error("failed to nack message")
		}
		return
	}

	entry = entry.WithFields(log.Fields{"order_id": event.OrderID, "type": event.Type})
	if err := handler(ctx, event); err != nil {
		entry.WithError(err).Error("failed to process order event")
		if nackErr := ack.Nack(false, !redelivered); nackErr != nil {
			entry.WithError(nackErr).Error("failed to nack message")
		}
		return
	}
	if ackErr := ack.Ack(false); ackErr != nil {
		entry.WithError(ackErr).Error("failed to ack message")
	}
}

// LogOrderEvent is the worker's default handler: it records the notification
// a customer or seller would receive.
func LogOrderEvent(_ context.Context, event models.OrderEvent) error {
	fields := log.Fields{
		"order_id": event.OrderID,
		"user_id":  event.UserID,
		"status":   event.Status,
		"total":    event.Total.StringFixed(2),
		"age":      time.Since(event.OccurredAt).Round(time.Millisecond).String(),
	}
	switch event.Type {
	case models.EventOrderCreated:
		log.WithFields(fields).Info("order placed")
	case models.EventOrderStatusChanged:
		fields["previous_status"] = event.PreviousStatus
		log.WithFields(fields).Info("order status changed")
	default:
		log.WithFields(fields).WithField("type", event.Type).Warn("unknown order event type")
	}
	return nil
}
