// Package events publishes notification side effects for downstream
// delivery workers (push, email). Delivery itself happens elsewhere.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"lookbook/backend/pkg/logger"
)

// NotificationEvent is the payload published on the notification subjects.
type NotificationEvent struct {
	NotificationID string    `json:"notification_id"`
	Type           string    `json:"type"`
	SenderID       string    `json:"sender_id"`
	RecipientID    string    `json:"recipient_id"`
	PostID         string    `json:"post_id,omitempty"`
	Status         string    `json:"status,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher sends notification events.
type Publisher interface {
	Publish(ctx context.Context, subject string, event NotificationEvent) error
}

// NatsPublisher publishes JSON events on a NATS connection.
type NatsPublisher struct {
	nc     *nats.Conn
	logger *zap.Logger
}

func NewNatsPublisher(nc *nats.Conn) *NatsPublisher {
	return &NatsPublisher{nc: nc, logger: logger.Named("events")}
}

// Connect dials url and returns a publisher that owns the connection.
func Connect(url string) (*NatsPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("lookbook"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return NewNatsPublisher(nc), nil
}

func (p *NatsPublisher) Publish(ctx context.Context, subject string, event NotificationEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling error: %w", err)
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set("Notification-Type", event.Type)

	p.logger.Debug("Publishing notification event",
		zap.String("subject", subject),
		zap.String("notification_id", event.NotificationID),
	)
	return p.nc.PublishMsg(msg)
}

// Close drains the connection so buffered events are flushed.
func (p *NatsPublisher) Close() error {
	return p.nc.Drain()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, NotificationEvent) error { return nil }
