package application

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultDispatchInterval = time.Second
	dispatchBatchSize       = 100
)

// Dispatcher drains the notification outbox: rows persisted inside a session
// transaction, or left behind by a crashed push, are delivered over the live
// channel and marked dispatched. Delivering a row twice is acceptable;
// losing it is not.
type Dispatcher struct {
	notifications NotificationStore
	publisher     Publisher
	interval      time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// NewDispatcher wires an outbox dispatcher polling at the given interval.
func NewDispatcher(notifications NotificationStore, publisher Publisher, interval time.Duration, now func() time.Time, logger *slog.Logger) *Dispatcher {
	if interval <= 0 {
		interval = defaultDispatchInterval
	}
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		notifications: notifications,
		publisher:     publisher,
		interval:      interval,
		now:           now,
		logger:        defaultLogger(logger),
	}
}

// Run polls the outbox until the context is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Drain(ctx)
		}
	}
}

// Drain delivers one batch of pending notifications. Failures stay in the
// outbox and are retried on the next pass.
func (d *Dispatcher) Drain(ctx context.Context) {
	pending, err := d.notifications.ListUndispatched(ctx, dispatchBatchSize)
	if err != nil {
		d.logger.WarnContext(ctx, "failed to list pending notifications", "error", err)
		return
	}

	for _, notification := range pending {
		if ctx.Err() != nil {
			return
		}
		if d.publisher != nil {
			d.publisher.PublishNotification(NotificationEvent{
				UserID:  notification.UserID,
				Message: notification.Message,
				Type:    notification.Type,
			})
		}
		if err := d.notifications.MarkDispatched(ctx, notification.ID, d.now()); err != nil {
			d.logger.WarnContext(ctx, "failed to mark notification dispatched",
				"notification_id", notification.ID, "error", err)
		}
	}
}
