// Package notify dispatches owner-facing notifications for spot
// lifecycle events. Delivery is fire-and-forget: approval must never
// fail or block because a notification could not be sent.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rit-atlas/atlas/internal/spot"
)

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 10 * time.Second

// Sender delivers a single notification. Implementations wrap whatever
// transport carries the message (mail relay, webhook).
type Sender interface {
	Send(ctx context.Context, deliveryID, userID, subject, body string) error
}

// LogSender writes notifications to the structured log. It stands in
// for a mail transport in development and tests.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs the notification.
func (s *LogSender) Send(ctx context.Context, deliveryID, userID, subject, body string) error {
	s.logger.InfoContext(ctx, "notification sent",
		slog.String("delivery_id", deliveryID),
		slog.String("user_id", userID),
		slog.String("subject", subject))
	return nil
}

// Dispatcher implements spot.ApprovalNotifier by handing deliveries to a
// Sender on a separate goroutine with its own timeout. At-least-once
// delivery is not guaranteed; failures are logged and dropped.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher around the given sender.
func NewDispatcher(sender Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sender: sender, timeout: DefaultTimeout, logger: logger}
}

// SpotApproved queues a "Spot Approved" notification to the spot's
// owner and returns immediately.
func (d *Dispatcher) SpotApproved(ctx context.Context, s *spot.Spot) {
	deliveryID := uuid.New().String()
	spotID := s.ID
	userID := s.UserID

	go func() {
		// The request context ends with the request; deliveries get a
		// detached context bounded by the dispatch timeout.
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		err := d.sender.Send(sendCtx, deliveryID, userID,
			"Spot Approved",
			"Your nap spot has been reviewed and approved. It is now published!")
		if err != nil {
			d.logger.Warn("failed to send approval notification",
				slog.String("delivery_id", deliveryID),
				slog.Int64("spot_id", spotID),
				slog.String("user_id", userID),
				slog.String("error", err.Error()))
		}
	}()
}
