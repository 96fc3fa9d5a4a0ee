package store

import (
	"context"
	"errors"
	"testing"

	"turfhub/pkg/domain"
)

func TestMemoryStoreHubUpdateRequiresExisting(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	hub := domain.Hub{ID: "h1", OwnerID: "o1", Name: "Arena", Category: domain.CategoryTurf}
	if err := s.UpdateHub(ctx, hub); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.InsertHub(ctx, hub); err != nil {
		t.Fatalf("insert: %v", err)
	}
	hub.Name = "Arena 2"
	if err := s.UpdateHub(ctx, hub); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, ok, err := s.GetHub(ctx, "h1")
	if err != nil || !ok || got.Name != "Arena 2" {
		t.Fatalf("get: %+v %v %v", got, ok, err)
	}
	mine, _ := s.ListHubsByOwner(ctx, "o1")
	other, _ := s.ListHubsByOwner(ctx, "o2")
	if len(mine) != 1 || len(other) != 0 {
		t.Fatalf("owner filter: %d %d", len(mine), len(other))
	}
}

func TestMemoryStoreCountsConfirmedBookings(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i, st := range []domain.BookingStatus{domain.BookingConfirmed, domain.BookingPending, domain.BookingConfirmed} {
		b := domain.Booking{ID: string(rune('a' + i)), HubID: "h1", UserName: "ravi", Status: st}
		if err := s.CreateBooking(ctx, b); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	n, err := s.CountBookings(ctx, "h1", domain.BookingConfirmed)
	if err != nil || n != 2 {
		t.Fatalf("count: %d %v", n, err)
	}
	if err := s.SetBookingStatus(ctx, "b", domain.BookingPending, domain.BookingConfirmed); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if n, _ := s.CountBookings(ctx, "h1", domain.BookingConfirmed); n != 3 {
		t.Fatalf("count after confirm: %d", n)
	}
	list, _ := s.ListBookingsByUserName(ctx, "ravi")
	if len(list) != 3 || list[0].ID != "c" {
		t.Fatalf("expected newest first, got %+v", list)
	}
}

func TestMemoryStoreStatusTransitionIsConditional(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.CreateBooking(ctx, domain.Booking{ID: "b1", HubID: "h1", UserName: "ravi", Status: domain.BookingPending}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SetBookingStatus(ctx, "b1", domain.BookingPending, domain.BookingConfirmed); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := s.SetBookingStatus(ctx, "b1", domain.BookingPending, domain.BookingExpired); !errors.Is(err, ErrStatusChanged) {
		t.Fatalf("expected ErrStatusChanged, got %v", err)
	}
	b, _, _ := s.GetBooking(ctx, "b1")
	if b.Status != domain.BookingConfirmed {
		t.Fatalf("confirmed booking was overwritten: %s", b.Status)
	}
	if err := s.SetBookingStatus(ctx, "missing", domain.BookingPending, domain.BookingExpired); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreRoomMembership(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.CreateRoom(ctx, domain.ChatRoom{ID: domain.GlobalRoomID, Name: "Global", IsGlobal: true}); err != nil {
		t.Fatalf("create global: %v", err)
	}
	if err := s.CreateRoom(ctx, domain.ChatRoom{ID: "r1", Name: "Squad", JoinCode: "1234", CreatedBy: "u1", Members: []string{"u1"}}); err != nil {
		t.Fatalf("create squad: %v", err)
	}
	if err := s.CreateRoom(ctx, domain.ChatRoom{ID: "r2", Name: "Dup", JoinCode: "1234"}); !errors.Is(err, ErrDuplicateJoinCode) {
		t.Fatalf("expected duplicate code, got %v", err)
	}
	room, ok, err := s.FindRoomByJoinCode(ctx, "1234")
	if err != nil || !ok || room.ID != "r1" {
		t.Fatalf("find: %+v %v %v", room, ok, err)
	}
	rooms, _ := s.ListRoomsForMember(ctx, "u2")
	if len(rooms) != 1 || !rooms[0].IsGlobal {
		t.Fatalf("non-member should only see global, got %+v", rooms)
	}
	for i := 0; i < 2; i++ {
		if _, err := s.AddRoomMember(ctx, "r1", "u2"); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}
	room, _, _ = s.GetRoom(ctx, "r1")
	if len(room.Members) != 2 {
		t.Fatalf("members should be deduplicated: %v", room.Members)
	}
	rooms, _ = s.ListRoomsForMember(ctx, "u2")
	if len(rooms) != 2 || !rooms[0].IsGlobal {
		t.Fatalf("expected global first then squad, got %+v", rooms)
	}
	if _, err := s.AddRoomMember(ctx, "missing", "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreMessagesAndPoll(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, id := range []string{"m1", "m2", "m3"} {
		if err := s.AppendMessage(ctx, domain.ChatMessage{ID: id, RoomID: "r1", Type: domain.MessageText, Text: id}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	poll := &domain.Poll{ID: "p1", Question: "When?", Options: []domain.PollOption{{ID: "a", Text: "6pm"}, {ID: "b", Text: "7pm"}}}
	if err := s.AppendMessage(ctx, domain.ChatMessage{ID: "m4", RoomID: "r1", Type: domain.MessagePoll, Poll: poll}); err != nil {
		t.Fatalf("append poll: %v", err)
	}
	msgs, err := s.ListMessages(ctx, "r1", 2)
	if err != nil || len(msgs) != 2 || msgs[0].ID != "m3" || msgs[1].ID != "m4" {
		t.Fatalf("expected last two chronologically, got %+v %v", msgs, err)
	}

	updated, err := s.UpdatePoll(ctx, "m4", func(p domain.Poll) (domain.Poll, error) {
		p.Options[0].Votes = append(p.Options[0].Votes, "u1")
		return p, nil
	})
	if err != nil {
		t.Fatalf("update poll: %v", err)
	}
	if len(updated.Poll.Options[0].Votes) != 1 {
		t.Fatalf("vote not applied: %+v", updated.Poll)
	}
	if _, err := s.UpdatePoll(ctx, "m1", func(p domain.Poll) (domain.Poll, error) { return p, nil }); !errors.Is(err, ErrInvalidPoll) {
		t.Fatalf("expected invalid poll on text message, got %v", err)
	}
	if _, err := s.UpdatePoll(ctx, "m4", func(p domain.Poll) (domain.Poll, error) {
		p.Options[1].Votes = append(p.Options[1].Votes, "u1")
		return p, nil
	}); !errors.Is(err, ErrInvalidPoll) {
		t.Fatalf("double vote must fail validation, got %v", err)
	}
	got, _, _ := s.GetMessage(ctx, "m4")
	if len(got.Poll.Options[1].Votes) != 0 {
		t.Fatalf("rejected update leaked into store: %+v", got.Poll)
	}
}
