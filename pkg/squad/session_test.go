package squad

import (
	"context"
	"errors"
	"testing"

	"turfhub/pkg/domain"
)

type fakeDirectory struct {
	rooms   map[string]domain.ChatRoom
	lookups int
}

func (d *fakeDirectory) FindRoomByJoinCode(_ context.Context, code string) (domain.ChatRoom, bool, error) {
	d.lookups++
	room, ok := d.rooms[code]
	return room, ok, nil
}

type fakeCreator struct{}

func (fakeCreator) CreateSquad(_ context.Context, name, description string) (domain.ChatRoom, error) {
	return domain.ChatRoom{ID: "room-new", Name: name, Description: description, JoinCode: "4321"}, nil
}

func TestSubmitCodeRejectsMalformedBeforeLookup(t *testing.T) {
	dir := &fakeDirectory{rooms: map[string]domain.ChatRoom{}}
	s := NewSession()
	if err := s.BeginJoin(); err != nil {
		t.Fatalf("begin join: %v", err)
	}
	for _, code := range []string{"123", "12345"} {
		if _, err := s.SubmitCode(context.Background(), code, dir); !errors.Is(err, ErrMalformedCode) {
			t.Fatalf("code %q: expected ErrMalformedCode, got %v", code, err)
		}
	}
	if dir.lookups != 0 {
		t.Fatalf("malformed codes must not reach the directory, lookups=%d", dir.lookups)
	}
	if s.State() != StateAwaitingCode {
		t.Fatalf("state changed to %s", s.State())
	}
}

func TestSubmitCodeNotFoundKeepsState(t *testing.T) {
	dir := &fakeDirectory{rooms: map[string]domain.ChatRoom{"1111": {ID: "r1"}}}
	s := NewSession()
	_ = s.BeginJoin()
	if _, err := s.SubmitCode(context.Background(), "2222", dir); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if s.State() != StateAwaitingCode {
		t.Fatalf("state changed to %s", s.State())
	}
	if _, ok := s.Room(); ok {
		t.Fatalf("no room expected")
	}
}

func TestSubmitCodeJoins(t *testing.T) {
	dir := &fakeDirectory{rooms: map[string]domain.ChatRoom{"0042": {ID: "r42", Name: "Sunday FC"}}}
	s := NewSession()
	_ = s.BeginJoin()
	room, err := s.SubmitCode(context.Background(), " 0042 ", dir)
	if err != nil {
		t.Fatalf("submit code: %v", err)
	}
	if room.ID != "r42" || s.State() != StateJoined {
		t.Fatalf("room=%+v state=%s", room, s.State())
	}
}

func TestCreateFlow(t *testing.T) {
	s := NewSession()
	if _, err := s.SubmitName(context.Background(), "x", "", fakeCreator{}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("naming before BeginCreate should fail, got %v", err)
	}
	_ = s.BeginCreate()
	if _, err := s.SubmitName(context.Background(), "   ", "", fakeCreator{}); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	room, err := s.SubmitName(context.Background(), "Night Owls", "late games", fakeCreator{})
	if err != nil {
		t.Fatalf("submit name: %v", err)
	}
	if room.Name != "Night Owls" || s.State() != StateJoined {
		t.Fatalf("room=%+v state=%s", room, s.State())
	}
	if err := s.BeginJoin(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("joined session should not begin a join, got %v", err)
	}
	s.Leave()
	if s.State() != StateIdle {
		t.Fatalf("leave should reset to idle")
	}
}

func TestCancel(t *testing.T) {
	s := NewSession()
	_ = s.BeginJoin()
	s.Cancel()
	if s.State() != StateIdle {
		t.Fatalf("cancel should return to idle, got %s", s.State())
	}
}
