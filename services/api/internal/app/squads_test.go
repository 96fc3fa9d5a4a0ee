package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"turfhub/pkg/domain"
	"turfhub/pkg/realtime"
	"turfhub/pkg/squad"
)

func TestCreateAndJoinSquad(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	host := env.signedIn(t, "host@example.com", "host", domain.RoleUser)
	mate := env.signedIn(t, "mate@example.com", "mate", domain.RoleUser)

	if _, err := env.app.CreateSquad(ctx, GuestPrincipal(), "Sunday Five", ""); !errors.Is(err, ErrSignInRequired) {
		t.Fatalf("expected guest rejected, got %v", err)
	}
	if _, err := env.app.CreateSquad(ctx, host, "   ", ""); !errors.Is(err, squad.ErrEmptyName) {
		t.Fatalf("expected empty name rejected, got %v", err)
	}
	room, err := env.app.CreateSquad(ctx, host, " Sunday Five ", "weekly game")
	if err != nil {
		t.Fatalf("create squad: %v", err)
	}
	if room.Name != "Sunday Five" || squad.ValidateJoinCode(room.JoinCode) != nil || !room.HasMember(host.User.ID) {
		t.Fatalf("unexpected room: %+v", room)
	}

	for _, code := range []string{"123", "12345", "12a4"} {
		if _, err := env.app.JoinSquad(ctx, mate, code); !errors.Is(err, squad.ErrMalformedCode) {
			t.Fatalf("code %q: expected malformed, got %v", code, err)
		}
	}
	unknown := "0000"
	if room.JoinCode == unknown {
		unknown = "0001"
	}
	if _, err := env.app.JoinSquad(ctx, mate, unknown); !errors.Is(err, squad.ErrRoomNotFound) {
		t.Fatalf("expected unknown code not found, got %v", err)
	}

	joined, err := env.app.JoinSquad(ctx, mate, room.JoinCode)
	if err != nil {
		t.Fatalf("join squad: %v", err)
	}
	if !joined.HasMember(mate.User.ID) {
		t.Fatalf("expected mate to be a member: %+v", joined)
	}
	if _, err := env.app.JoinSquad(ctx, mate, room.JoinCode); err != nil {
		t.Fatalf("joining twice should be a no-op: %v", err)
	}

	rooms, err := env.app.ListRooms(ctx, mate)
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 2 || !rooms[0].IsGlobal || rooms[1].ID != room.ID {
		t.Fatalf("expected global then squad, got %+v", rooms)
	}
	msgs, err := env.app.ListMessages(ctx, host, room.ID, 0)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Type != domain.MessageSystem {
		t.Fatalf("expected one join notice, got %+v", msgs)
	}
}

func TestSendMessageMembership(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	host := env.signedIn(t, "host@example.com", "host", domain.RoleUser)
	outsider := env.signedIn(t, "out@example.com", "outsider", domain.RoleUser)
	room, err := env.app.CreateSquad(ctx, host, "Squad", "")
	if err != nil {
		t.Fatalf("create squad: %v", err)
	}

	if _, err := env.app.SendMessage(ctx, GuestPrincipal(), domain.GlobalRoomID, MessageInput{Text: "hi"}); !errors.Is(err, ErrSignInRequired) {
		t.Fatalf("expected guest cannot send, got %v", err)
	}
	if _, err := env.app.SendMessage(ctx, outsider, room.ID, MessageInput{Text: "hi"}); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected non-member rejected, got %v", err)
	}
	if _, err := env.app.ListMessages(ctx, outsider, room.ID, 10); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected non-member cannot read, got %v", err)
	}
	if _, err := env.app.SendMessage(ctx, outsider, domain.GlobalRoomID, MessageInput{Text: "  "}); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected empty message rejected, got %v", err)
	}
	if _, err := env.app.SendMessage(ctx, outsider, "missing", MessageInput{Text: "hi"}); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected room not found, got %v", err)
	}

	msg, err := env.app.SendMessage(ctx, outsider, domain.GlobalRoomID, MessageInput{Text: "anyone for futsal?"})
	if err != nil {
		t.Fatalf("send global: %v", err)
	}
	if msg.SenderName != "outsider" || msg.SenderID != outsider.User.ID || msg.Type != domain.MessageText {
		t.Fatalf("unexpected message: %+v", msg)
	}
	got, err := env.app.ListMessages(ctx, GuestPrincipal(), domain.GlobalRoomID, 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("guest reads global: %+v %v", got, err)
	}
}

func TestPollVotingKeepsOneVotePerMember(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	host := env.signedIn(t, "host@example.com", "host", domain.RoleUser)
	mate := env.signedIn(t, "mate@example.com", "mate", domain.RoleUser)
	room, err := env.app.CreateSquad(ctx, host, "Squad", "")
	if err != nil {
		t.Fatalf("create squad: %v", err)
	}
	if _, err := env.app.JoinSquad(ctx, mate, room.JoinCode); err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, err := env.app.SendMessage(ctx, host, room.ID, MessageInput{Poll: &PollInput{Question: "When?", Options: []string{"Sat"}}}); !errors.Is(err, squad.ErrInvalidPoll) {
		t.Fatalf("expected poll with one option rejected, got %v", err)
	}
	msg, err := env.app.SendMessage(ctx, host, room.ID, MessageInput{Poll: &PollInput{Question: "When?", Options: []string{"Sat", "Sun"}}})
	if err != nil {
		t.Fatalf("send poll: %v", err)
	}
	sat, sun := msg.Poll.Options[0].ID, msg.Poll.Options[1].ID

	sub, err := env.app.Subscribe(ctx, host, room.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if _, err := env.app.Vote(ctx, mate, room.ID, msg.ID, sat); err != nil {
		t.Fatalf("vote sat: %v", err)
	}
	updated, err := env.app.Vote(ctx, mate, room.ID, msg.ID, sun)
	if err != nil {
		t.Fatalf("vote sun: %v", err)
	}
	tally := squad.Tally(*updated.Poll)
	if tally[sat] != 0 || tally[sun] != 1 {
		t.Fatalf("expected only the last vote to count, got %v", tally)
	}
	if _, err := env.app.Vote(ctx, mate, room.ID, msg.ID, "nope"); !errors.Is(err, squad.ErrUnknownOption) {
		t.Fatalf("expected unknown option, got %v", err)
	}
	if _, err := env.app.Vote(ctx, mate, domain.GlobalRoomID, msg.ID, sat); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected message scoped to its room, got %v", err)
	}

	select {
	case evt := <-sub.C():
		if evt.Type != realtime.EventPollUpdated {
			t.Fatalf("unexpected event %q", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected poll update event")
	}
}

func TestSubscribeRequiresMembership(t *testing.T) {
	env := newTestEnv(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	host := env.signedIn(t, "host@example.com", "host", domain.RoleUser)
	room, err := env.app.CreateSquad(ctx, host, "Squad", "")
	if err != nil {
		t.Fatalf("create squad: %v", err)
	}
	if _, err := env.app.Subscribe(ctx, GuestPrincipal(), room.ID); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected guest blocked from squad stream, got %v", err)
	}
	sub, err := env.app.Subscribe(ctx, GuestPrincipal(), domain.GlobalRoomID)
	if err != nil {
		t.Fatalf("guest subscribe global: %v", err)
	}
	cancel()
	select {
	case _, ok := <-sub.C():
		if ok {
			t.Fatalf("expected channel closed after cancel")
		}
	case <-time.After(time.Second):
		t.Fatalf("subscription did not close")
	}
}

func TestVoteRejectsTextMessage(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	host := env.signedIn(t, "host@example.com", "host", domain.RoleUser)
	room, err := env.app.CreateSquad(ctx, host, "Squad", "")
	if err != nil {
		t.Fatalf("create squad: %v", err)
	}
	msg, err := env.app.SendMessage(ctx, host, room.ID, MessageInput{Text: "kickoff at six"})
	if err != nil {
		t.Fatalf("send text: %v", err)
	}
	if _, err := env.app.Vote(ctx, host, room.ID, msg.ID, "o1"); !errors.Is(err, ErrNotAPoll) {
		t.Fatalf("expected ErrNotAPoll, got %v", err)
	}
}
