// Package worker turns domain events into user-facing notifications.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	amqp "github.com/rabbitmq/amqp091-go"

	"turfhub/pkg/events"
)

// ErrPermanent marks deliveries that will never succeed and must not be requeued.
var ErrPermanent = errors.New("permanent failure")

// Bindings are the routing keys the worker consumes.
var Bindings = []string{
	events.RKVerificationRequested,
	events.RKBookingCreated,
	events.RKBookingConfirmed,
	events.RKBookingCancelled,
	events.RKBookingExpired,
}

type Config struct {
	Notifier  Notifier
	VerifyURL string
}

type Worker struct {
	notifier  Notifier
	verifyURL string
}

func New(cfg Config) *Worker {
	n := cfg.Notifier
	if n == nil {
		n = NewLogNotifier(nil)
	}
	return &Worker{notifier: n, verifyURL: cfg.VerifyURL}
}

// Run acks handled deliveries, dead-letters permanent failures and requeues
// the rest. It returns when ctx is done or the channel closes.
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			w.settle(ctx, d)
		}
	}
}

func (w *Worker) settle(ctx context.Context, d amqp.Delivery) {
	err := w.Handle(ctx, d.RoutingKey, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			slog.Warn("ack failed", "routing_key", d.RoutingKey, "err", ackErr)
		}
	case errors.Is(err, ErrPermanent):
		slog.Error("dropping event", "routing_key", d.RoutingKey, "err", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			slog.Warn("nack failed", "routing_key", d.RoutingKey, "err", nackErr)
		}
	default:
		slog.Warn("event handling failed, requeueing", "routing_key", d.RoutingKey, "err", err)
		if nackErr := d.Nack(false, !d.Redelivered); nackErr != nil {
			slog.Warn("nack failed", "routing_key", d.RoutingKey, "err", nackErr)
		}
	}
}

// Handle renders and sends the notification for one event.
func (w *Worker) Handle(ctx context.Context, routingKey string, body []byte) error {
	var (
		n   Notification
		err error
	)
	switch routingKey {
	case events.RKVerificationRequested:
		n, err = w.verificationMail(body)
	case events.RKBookingCreated:
		n, err = bookingCreatedMail(body)
	case events.RKBookingConfirmed, events.RKBookingCancelled, events.RKBookingExpired:
		n, err = bookingStatusMail(body)
	default:
		return fmt.Errorf("%w: unknown routing key %q", ErrPermanent, routingKey)
	}
	if err != nil {
		return err
	}
	if err := w.notifier.Notify(ctx, n); err != nil {
		return fmt.Errorf("notify %s: %w", routingKey, err)
	}
	return nil
}

func (w *Worker) verificationMail(body []byte) (Notification, error) {
	evt, err := events.Decode[events.VerificationRequested](body)
	if err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	if evt.Email == "" || evt.Token == "" {
		return Notification{}, fmt.Errorf("%w: verification event without email or token", ErrPermanent)
	}
	link := evt.Token
	if w.verifyURL != "" {
		link = w.verifyURL + "?token=" + url.QueryEscape(evt.Token)
	}
	return Notification{
		To:      evt.Email,
		Subject: "Verify your email",
		Body: fmt.Sprintf("Hi %s, confirm your account before %s: %s",
			evt.Nickname, evt.ExpiresAt.Format("02 Jan 15:04 MST"), link),
	}, nil
}

func bookingCreatedMail(body []byte) (Notification, error) {
	evt, err := events.Decode[events.BookingCreated](body)
	if err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	to := evt.OwnerEmail
	if to == "" {
		to = evt.HubName
	}
	what := evt.SlotTime
	if evt.AccessoryName != "" {
		what = evt.AccessoryName + " at " + evt.SlotTime
	}
	return Notification{
		To:      to,
		Subject: "New booking at " + evt.HubName,
		Body: fmt.Sprintf("%s booked %s on %s for %d INR. Verify the payment to confirm.",
			evt.UserName, what, evt.Date, evt.TotalPrice),
	}, nil
}

func bookingStatusMail(body []byte) (Notification, error) {
	evt, err := events.Decode[events.BookingStatusChanged](body)
	if err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	to := evt.UserEmail
	if to == "" {
		to = evt.UserName
	}
	return Notification{
		To:      to,
		Subject: fmt.Sprintf("Booking %s", evt.Status),
		Body:    fmt.Sprintf("Your booking %s at %s is now %s.", evt.BookingID, evt.HubName, evt.Status),
	}, nil
}
