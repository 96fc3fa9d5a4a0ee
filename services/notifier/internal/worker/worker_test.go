package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"turfhub/pkg/events"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

type settlement struct {
	ack     bool
	requeue bool
}

type fakeAcknowledger struct {
	mu  sync.Mutex
	got []settlement
}

func (a *fakeAcknowledger) Ack(uint64, bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.got = append(a.got, settlement{ack: true})
	return nil
}

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.got = append(a.got, settlement{requeue: requeue})
	return nil
}

func (a *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	return a.Nack(0, false, requeue)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestHandleVerificationRequested(t *testing.T) {
	n := &recordingNotifier{}
	w := New(Config{Notifier: n, VerifyURL: "https://turfhub.test/verify"})
	body := mustJSON(t, events.VerificationRequested{
		Email: "kai@example.com", Nickname: "kai", Token: "tok en", ExpiresAt: time.Now().Add(time.Hour),
	})
	if err := w.Handle(context.Background(), events.RKVerificationRequested, body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(n.sent) != 1 || n.sent[0].To != "kai@example.com" {
		t.Fatalf("unexpected notifications: %+v", n.sent)
	}
	if !strings.Contains(n.sent[0].Body, "https://turfhub.test/verify?token=tok+en") {
		t.Fatalf("missing verify link: %q", n.sent[0].Body)
	}
}

func TestHandleBookingEvents(t *testing.T) {
	n := &recordingNotifier{}
	w := New(Config{Notifier: n})
	created := mustJSON(t, events.BookingCreated{
		HubName: "Arena", OwnerEmail: "owner@example.com", UserName: "kai",
		SlotTime: "06:00 PM", Date: "2026-10-20", TotalPrice: 510,
	})
	if err := w.Handle(context.Background(), events.RKBookingCreated, created); err != nil {
		t.Fatalf("created: %v", err)
	}
	expired := mustJSON(t, events.BookingStatusChanged{BookingID: "b1", HubName: "Arena", UserName: "kai", UserEmail: "kai@example.com", Status: "expired"})
	if err := w.Handle(context.Background(), events.RKBookingExpired, expired); err != nil {
		t.Fatalf("expired: %v", err)
	}
	if len(n.sent) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(n.sent))
	}
	if n.sent[0].To != "owner@example.com" || !strings.Contains(n.sent[0].Body, "510 INR") {
		t.Fatalf("unexpected owner notification: %+v", n.sent[0])
	}
	if n.sent[1].To != "kai@example.com" || n.sent[1].Subject != "Booking expired" {
		t.Fatalf("unexpected status notification: %+v", n.sent[1])
	}
}

func TestHandlePermanentFailures(t *testing.T) {
	w := New(Config{Notifier: &recordingNotifier{}})
	if err := w.Handle(context.Background(), "hub.deleted", []byte(`{}`)); !errors.Is(err, ErrPermanent) {
		t.Fatalf("unknown key: expected ErrPermanent, got %v", err)
	}
	if err := w.Handle(context.Background(), events.RKBookingCreated, []byte(`not json`)); !errors.Is(err, ErrPermanent) {
		t.Fatalf("bad payload: expected ErrPermanent, got %v", err)
	}
}

func TestRunSettlesDeliveries(t *testing.T) {
	n := &recordingNotifier{}
	w := New(Config{Notifier: n})
	ack := &fakeAcknowledger{}
	deliveries := make(chan amqp.Delivery, 3)
	deliveries <- amqp.Delivery{Acknowledger: ack, RoutingKey: events.RKBookingConfirmed,
		Body: mustJSON(t, events.BookingStatusChanged{BookingID: "b1", Status: "confirmed"})}
	deliveries <- amqp.Delivery{Acknowledger: ack, RoutingKey: events.RKBookingCreated, Body: []byte(`{`)}
	close(deliveries)

	if err := w.Run(context.Background(), deliveries); err == nil {
		t.Fatalf("expected error when the channel closes")
	}
	want := []settlement{{ack: true}, {requeue: false}}
	if len(ack.got) != len(want) {
		t.Fatalf("settlements = %+v, want %+v", ack.got, want)
	}
	for i := range want {
		if ack.got[i] != want[i] {
			t.Fatalf("settlement %d = %+v, want %+v", i, ack.got[i], want[i])
		}
	}
}

func TestRunRequeuesTransientFailureOnce(t *testing.T) {
	w := New(Config{Notifier: &recordingNotifier{err: errors.New("smtp down")}})
	ack := &fakeAcknowledger{}
	body := mustJSON(t, events.BookingStatusChanged{BookingID: "b1", Status: "confirmed"})
	deliveries := make(chan amqp.Delivery, 2)
	deliveries <- amqp.Delivery{Acknowledger: ack, RoutingKey: events.RKBookingConfirmed, Body: body}
	deliveries <- amqp.Delivery{Acknowledger: ack, RoutingKey: events.RKBookingConfirmed, Body: body, Redelivered: true}
	close(deliveries)

	_ = w.Run(context.Background(), deliveries)
	if len(ack.got) != 2 || !ack.got[0].requeue || ack.got[1].requeue {
		t.Fatalf("unexpected settlements: %+v", ack.got)
	}
}
