package application

import (
	"context"
	"log/slog"
)

// Notifier fans messages out through a Messenger. Delivery is best effort:
// failures are logged and never returned to the caller.
type Notifier struct {
	messenger Messenger
	logger    *slog.Logger
}

// NewNotifier wraps messenger. A nil messenger drops every message.
func NewNotifier(messenger Messenger, logger *slog.Logger) *Notifier {
	return &Notifier{messenger: messenger, logger: defaultLogger(logger)}
}

// Notify sends msg to one user and reports whether delivery succeeded.
func (n *Notifier) Notify(ctx context.Context, userID string, msg Message) bool {
	if n == nil || n.messenger == nil || userID == "" {
		return false
	}
	if err := n.messenger.Send(ctx, userID, msg); err != nil {
		serviceLogger(ctx, n.logger, "Notifier", "Notify", "recipient_id", userID).
			WarnContext(ctx, "notification failed", "error", err, "error_kind", ErrorKind(err))
		return false
	}
	return true
}

// Broadcast sends msg to every recipient and returns the delivered count.
func (n *Notifier) Broadcast(ctx context.Context, recipients []User, msg Message) int {
	delivered := 0
	for _, user := range recipients {
		if n.Notify(ctx, user.ID, msg) {
			delivered++
		}
	}
	return delivered
}
