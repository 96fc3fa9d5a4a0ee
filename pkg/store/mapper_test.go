package store

import (
	"encoding/json"
	"errors"
	"testing"

	"turfhub/pkg/domain"
	"turfhub/pkg/session"
)

func TestHubRowRoundTrip(t *testing.T) {
	row := HubRow{
		ID:           "hub-1",
		OwnerID:      "owner-a",
		Name:         "Green Arena",
		Category:     "TURF",
		PriceStart:   650,
		IsSoldOut:    true,
		ContactPhone: "+91 98000 00000",
		ContactEmail: "desk@greenarena.in",
		UPIID:        "arena@upi",
		Slots:        []SlotRow{{ID: "s1", Time: "6 PM", Price: 650, Available: true}},
	}
	hub := HubFromRow(row)
	if hub.PriceStart != 650 || !hub.IsSoldOut || hub.ContactPhone != row.ContactPhone ||
		hub.ContactEmail != row.ContactEmail || hub.OwnerID != "owner-a" {
		t.Fatalf("unexpected hub %+v", hub)
	}
	back := HubToRow(hub)
	if back.PriceStart != row.PriceStart || back.IsSoldOut != row.IsSoldOut ||
		back.ContactPhone != row.ContactPhone || back.ContactEmail != row.ContactEmail ||
		back.OwnerID != row.OwnerID {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestHubToRowUsesStorageFieldNames(t *testing.T) {
	payload, err := json.Marshal(HubToRow(domain.Hub{ID: "h", PriceStart: 300, IsSoldOut: true, ContactPhone: "1", ContactEmail: "e", OwnerID: "o"}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"price_start", "is_sold_out", "contact_phone", "contact_email", "owner_id"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("missing storage field %q in %s", key, payload)
		}
	}
	if _, ok := fields["priceStart"]; ok {
		t.Fatalf("domain field name leaked into storage payload")
	}
}

func TestHubFromRowDefaultsLists(t *testing.T) {
	hub := HubFromRow(HubRow{ID: "h"})
	if hub.Images == nil || hub.Amenities == nil || hub.Slots == nil || hub.Categories == nil {
		t.Fatalf("absent lists must be empty, got %+v", hub)
	}
	if hub.Category != domain.CategoryTurf {
		t.Fatalf("missing category should default to turf")
	}
}

func TestDecodePollAcceptsStringOrObject(t *testing.T) {
	object := []byte(`{"id":"p1","question":"When?","options":[{"id":"a","text":"6","votes":["u1"]},{"id":"b","text":"7"}],"createdBy":"u1"}`)
	encoded, _ := json.Marshal(string(object))

	for name, raw := range map[string][]byte{"object": object, "string": encoded} {
		p, err := DecodePoll(raw)
		if err != nil {
			t.Fatalf("%s: decode: %v", name, err)
		}
		if p == nil || p.ID != "p1" || len(p.Options) != 2 || p.Options[1].Votes == nil {
			t.Fatalf("%s: unexpected poll %+v", name, p)
		}
	}
	if p, err := DecodePoll(nil); err != nil || p != nil {
		t.Fatalf("empty column should decode to nil, got %v %v", p, err)
	}
	if _, err := DecodePoll([]byte(`"not json"`)); err == nil {
		t.Fatalf("expected error for garbage string")
	}
}

func TestEncodePollRejectsDoubleVote(t *testing.T) {
	p := &domain.Poll{ID: "p", Question: "q", Options: []domain.PollOption{
		{ID: "a", Votes: []string{"u1"}},
		{ID: "b", Votes: []string{"u1"}},
	}}
	if _, err := EncodePoll(p); !errors.Is(err, ErrInvalidPoll) {
		t.Fatalf("expected ErrInvalidPoll, got %v", err)
	}
	p.Options[1].Votes = nil
	raw, err := EncodePoll(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(raw) == 0 || raw[0] != '{' {
		t.Fatalf("poll must be written as an object, got %s", raw)
	}
}

func TestMessageRoundTrip(t *testing.T) {
	msg := domain.ChatMessage{ID: "m1", RoomID: "global", SenderName: "Zoya", Type: domain.MessagePoll, Poll: &domain.Poll{
		ID: "p", Question: "q", Options: []domain.PollOption{{ID: "a", Votes: []string{}}, {ID: "b", Votes: []string{"u2"}}},
	}}
	row, err := MessageToRow(msg)
	if err != nil {
		t.Fatalf("to row: %v", err)
	}
	got, err := MessageFromRow(row)
	if err != nil {
		t.Fatalf("from row: %v", err)
	}
	if got.Poll == nil || got.Poll.Options[1].Votes[0] != "u2" || got.Type != domain.MessagePoll {
		t.Fatalf("unexpected message %+v", got)
	}
}

func TestOwnerFiltering(t *testing.T) {
	hubs := []domain.Hub{{ID: "h1", OwnerID: "A"}, {ID: "h2", OwnerID: "B"}, {ID: "h3", OwnerID: "A"}}
	bookings := []domain.Booking{
		{ID: "b1", HubID: "h1", UserName: "zoya"},
		{ID: "b2", HubID: "h2", UserName: "zoya"},
		{ID: "b3", HubID: "h3", UserName: "kabir"},
	}
	ownerA := session.Identity{UserID: "A", Role: domain.RoleOwner, Nickname: "A"}

	visible := VisibleHubs(hubs, ownerA)
	if len(visible) != 2 || visible[0].ID != "h1" || visible[1].ID != "h3" {
		t.Fatalf("owner A hubs: %+v", visible)
	}
	vb := VisibleBookings(bookings, ownerA, HubIDs(visible))
	if len(vb) != 2 || vb[0].ID != "b1" || vb[1].ID != "b3" {
		t.Fatalf("owner A bookings: %+v", vb)
	}

	zoya := session.Identity{UserID: "u1", Role: domain.RoleUser, Nickname: "zoya"}
	if got := VisibleHubs(hubs, zoya); len(got) != 3 {
		t.Fatalf("users see every hub, got %d", len(got))
	}
	ub := VisibleBookings(bookings, zoya, nil)
	if len(ub) != 2 || ub[0].ID != "b1" || ub[1].ID != "b2" {
		t.Fatalf("user bookings: %+v", ub)
	}
	if got := VisibleBookings(bookings, session.Guest(), nil); len(got) != 0 {
		t.Fatalf("guests see no bookings")
	}
}

func TestVisibleBookingsSharedNickname(t *testing.T) {
	bookings := []domain.Booking{
		{ID: "b1", HubID: "h1", UserName: "sam", UserID: "u1"},
		{ID: "b2", HubID: "h1", UserName: "sam", UserID: "u2"},
		{ID: "b3", HubID: "h2", UserName: "sam"},
	}
	first := session.Identity{UserID: "u1", Role: domain.RoleUser, Nickname: "sam"}
	got := VisibleBookings(bookings, first, nil)
	if len(got) != 2 || got[0].ID != "b1" || got[1].ID != "b3" {
		t.Fatalf("u1 bookings: %+v", got)
	}
	second := session.Identity{UserID: "u2", Role: domain.RoleUser, Nickname: "sam"}
	got = VisibleBookings(bookings, second, nil)
	if len(got) != 2 || got[0].ID != "b2" {
		t.Fatalf("u2 bookings: %+v", got)
	}
}
