package social

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lookbook/backend/internal/constants"
	"lookbook/backend/internal/docstore"
	"lookbook/backend/internal/events"
	"lookbook/backend/internal/model"
	"lookbook/backend/pkg/logger"
)

// Match selects notifications by their non-empty fields.
type Match struct {
	Type        string
	SenderID    string
	RecipientID string
	PostID      string
	Status      string
}

func (m Match) filters() []docstore.Filter {
	var fs []docstore.Filter
	add := func(field, value string) {
		if value != "" {
			fs = append(fs, docstore.Eq(field, value))
		}
	}
	add("type", m.Type)
	add("senderId", m.SenderID)
	add("recipientId", m.RecipientID)
	add("postId", m.PostID)
	add("status", m.Status)
	return fs
}

// NotificationEmitter writes notification records as side effects of graph
// and interaction actions and announces them on the event bus. Writes are
// never atomic with the action they accompany.
type NotificationEmitter struct {
	records   records
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewNotificationEmitter(store docstore.Store, publisher events.Publisher, log *zap.Logger) *NotificationEmitter {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &NotificationEmitter{
		records:   records{store: store},
		publisher: publisher,
		logger:    logger.OrDefault(log, "notifications"),
		now:       time.Now,
	}
}

// Emit inserts n and returns its id. Notifications to oneself are skipped
// and return "".
func (e *NotificationEmitter) Emit(ctx context.Context, n model.Notification) (string, error) {
	if n.SenderID == n.RecipientID {
		return "", nil
	}
	if n.CreatedAt == 0 {
		n.CreatedAt = model.Millis(e.now())
	}
	n.ID = ""

	id, err := e.records.add(ctx, constants.CollectionNotifications, n)
	if err != nil {
		return "", err
	}
	n.ID = id
	e.publish(ctx, constants.SubjectNotificationCreated, n)
	return id, nil
}

// EmitOnce inserts n unless a notification matching m already exists.
// It returns the id of the new or existing record and whether it was created.
func (e *NotificationEmitter) EmitOnce(ctx context.Context, n model.Notification, m Match) (string, bool, error) {
	if n.SenderID == n.RecipientID {
		return "", false, nil
	}
	existing, err := e.find(ctx, m, 1)
	if err != nil {
		return "", false, err
	}
	if len(existing) > 0 {
		return existing[0].ID, false, nil
	}
	id, err := e.Emit(ctx, n)
	return id, id != "", err
}

// Exists reports whether any notification matches m.
func (e *NotificationEmitter) Exists(ctx context.Context, m Match) (bool, error) {
	found, err := e.find(ctx, m, 1)
	return len(found) > 0, err
}

// Retract deletes every notification matching m and returns how many were removed.
func (e *NotificationEmitter) Retract(ctx context.Context, m Match) (int, error) {
	found, err := e.find(ctx, m, 0)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, n := range found {
		if err := e.records.delete(ctx, constants.CollectionNotifications, n.ID); err != nil {
			return removed, err
		}
		removed++
		e.publish(ctx, constants.SubjectNotificationDeleted, n)
	}
	return removed, nil
}

// SetStatus moves every notification matching m to status.
func (e *NotificationEmitter) SetStatus(ctx context.Context, status string, m Match) (int, error) {
	found, err := e.find(ctx, m, 0)
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, n := range found {
		if err := e.records.update(ctx, constants.CollectionNotifications, n.ID, docstore.Set("status", status)); err != nil {
			return updated, err
		}
		updated++
		n.Status = status
		e.publish(ctx, constants.SubjectNotificationUpdated, n)
	}
	return updated, nil
}

// ForRecipient lists a user's notifications, newest first.
func (e *NotificationEmitter) ForRecipient(ctx context.Context, recipientID string, limit int) ([]model.Notification, error) {
	return queryAll[model.Notification](ctx, e.records, docstore.Query{
		Collection: constants.CollectionNotifications,
		Filters:    []docstore.Filter{docstore.Eq("recipientId", recipientID)},
		OrderBy:    &docstore.Order{Field: "createdAt", Desc: true},
		Limit:      limit,
	})
}

func (e *NotificationEmitter) find(ctx context.Context, m Match, limit int) ([]model.Notification, error) {
	filters := m.filters()
	if len(filters) == 0 {
		return nil, fmt.Errorf("notification match needs at least one field")
	}
	return queryAll[model.Notification](ctx, e.records, docstore.Query{
		Collection: constants.CollectionNotifications,
		Filters:    filters,
		Limit:      limit,
	})
}

func (e *NotificationEmitter) publish(ctx context.Context, subject string, n model.Notification) {
	event := events.NotificationEvent{
		NotificationID: n.ID,
		Type:           n.Type,
		SenderID:       n.SenderID,
		RecipientID:    n.RecipientID,
		PostID:         n.PostID,
		Status:         n.Status,
		OccurredAt:     e.now(),
	}
	if err := e.publisher.Publish(ctx, subject, event); err != nil {
		e.logger.Warn("Failed to publish notification event",
			zap.String("subject", subject),
			zap.String("notification_id", n.ID),
			zap.Error(err),
		)
	}
}

func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= constants.NotificationTextLimit {
		return text
	}
	return string(runes[:constants.NotificationTextLimit])
}
