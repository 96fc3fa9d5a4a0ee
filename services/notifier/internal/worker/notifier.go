package worker

import (
	"context"
	"log/slog"
)

// Notification is a rendered message for one recipient.
type Notification struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers notifications over some channel (mail, SMS, push).
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log. It stands in for a
// mail relay in development.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Notification) error {
	n.logger.InfoContext(ctx, "notification", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}
