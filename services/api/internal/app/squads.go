package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"turfhub/internal/util"
	"turfhub/pkg/domain"
	"turfhub/pkg/realtime"
	"turfhub/pkg/session"
	"turfhub/pkg/squad"
	"turfhub/pkg/store"
)

const (
	globalRoomName        = "Global Lobby"
	globalRoomDescription = "Find players, share venues and plan games."
	defaultMessageLimit   = 100
	maxMessageLimit       = 500
	createSquadAttempts   = 3
)

// MessageInput is a chat post: plain text, or a poll when Poll is set.
type MessageInput struct {
	Text string     `json:"text"`
	Poll *PollInput `json:"poll,omitempty"`
}

type PollInput struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// EnsureGlobalRoom creates the public room if it does not exist yet.
func (a *App) EnsureGlobalRoom(ctx context.Context) error {
	_, ok, err := a.store.GetRoom(ctx, domain.GlobalRoomID)
	if err != nil {
		return fmt.Errorf("fetch global room: %w", err)
	}
	if ok {
		return nil
	}
	room := domain.ChatRoom{
		ID:          domain.GlobalRoomID,
		Name:        globalRoomName,
		Description: globalRoomDescription,
		IsGlobal:    true,
		Members:     []string{},
		CreatedAt:   a.now().UTC(),
	}
	if err := a.store.CreateRoom(ctx, room); err != nil {
		// another instance may have created it first
		if _, ok, gerr := a.store.GetRoom(ctx, domain.GlobalRoomID); gerr == nil && ok {
			return nil
		}
		return fmt.Errorf("create global room: %w", err)
	}
	return nil
}

// squadCreator deploys squads for one member, retrying when a concurrent
// create claims the same join code.
type squadCreator struct {
	app *App
	p   Principal
}

func (c squadCreator) CreateSquad(ctx context.Context, name, description string) (domain.ChatRoom, error) {
	taken := func(ctx context.Context, code string) (bool, error) {
		_, ok, err := c.app.store.FindRoomByJoinCode(ctx, code)
		return ok, err
	}
	for attempt := 0; attempt < createSquadAttempts; attempt++ {
		code, err := squad.AllocateJoinCode(ctx, taken, 0)
		if err != nil {
			return domain.ChatRoom{}, err
		}
		room := domain.ChatRoom{
			ID:          util.NewID(),
			Name:        name,
			Description: description,
			JoinCode:    code,
			CreatedBy:   c.p.User.ID,
			Members:     []string{c.p.User.ID},
			CreatedAt:   c.app.now().UTC(),
		}
		err = c.app.store.CreateRoom(ctx, room)
		if errors.Is(err, store.ErrDuplicateJoinCode) {
			continue
		}
		if err != nil {
			return domain.ChatRoom{}, fmt.Errorf("create room: %w", err)
		}
		return room, nil
	}
	return domain.ChatRoom{}, squad.ErrCodesExhausted
}

// CreateSquad deploys a private squad with a fresh 4-digit join code. The
// creator is its first member.
func (a *App) CreateSquad(ctx context.Context, p Principal, name, description string) (domain.ChatRoom, error) {
	if !session.CanSend(p.Identity) {
		return domain.ChatRoom{}, ErrSignInRequired
	}
	flow := squad.NewSession()
	if err := flow.BeginCreate(); err != nil {
		return domain.ChatRoom{}, err
	}
	return flow.SubmitName(ctx, name, description, squadCreator{app: a, p: p})
}

// JoinSquad adds the caller to the squad using code. Malformed codes are
// rejected before any lookup.
func (a *App) JoinSquad(ctx context.Context, p Principal, code string) (domain.ChatRoom, error) {
	if !session.CanSend(p.Identity) {
		return domain.ChatRoom{}, ErrSignInRequired
	}
	flow := squad.NewSession()
	if err := flow.BeginJoin(); err != nil {
		return domain.ChatRoom{}, err
	}
	room, err := flow.SubmitCode(ctx, code, a.store)
	if err != nil {
		return domain.ChatRoom{}, err
	}
	if room.HasMember(p.User.ID) {
		return room, nil
	}
	room, err = a.store.AddRoomMember(ctx, room.ID, p.User.ID)
	if err != nil {
		return domain.ChatRoom{}, fmt.Errorf("add room member: %w", err)
	}
	a.publishRealtime(ctx, realtime.RoomTopic(room.ID), realtime.EventMemberJoin, map[string]string{
		"userId":   p.User.ID,
		"nickname": p.Identity.Nickname,
	})
	notice := domain.ChatMessage{
		ID:         util.NewID(),
		RoomID:     room.ID,
		SenderName: "System",
		Text:       fmt.Sprintf("%s joined the squad", p.Identity.Nickname),
		CreatedAt:  a.now().UTC(),
		Type:       domain.MessageSystem,
	}
	if err := a.store.AppendMessage(ctx, notice); err != nil {
		return domain.ChatRoom{}, fmt.Errorf("append join notice: %w", err)
	}
	a.publishRealtime(ctx, realtime.RoomTopic(room.ID), realtime.EventMessage, notice)
	return room, nil
}

// ListRooms returns the global room followed by the caller's squads. Store
// failures degrade to an empty list.
func (a *App) ListRooms(ctx context.Context, p Principal) ([]domain.ChatRoom, error) {
	if p.Identity.IsGuest() {
		room, ok, err := a.store.GetRoom(ctx, domain.GlobalRoomID)
		if err != nil {
			slog.Error("fetch global room failed", "err", err)
			return []domain.ChatRoom{}, nil
		}
		if !ok {
			return []domain.ChatRoom{}, nil
		}
		return []domain.ChatRoom{room}, nil
	}
	rooms, err := a.store.ListRoomsForMember(ctx, p.User.ID)
	if err != nil {
		slog.Error("list rooms failed", "user_id", p.User.ID, "err", err)
		return []domain.ChatRoom{}, nil
	}
	return rooms, nil
}

// readableRoom loads a room the caller may read. Anyone may read the global
// room; squads are members only.
func (a *App) readableRoom(ctx context.Context, p Principal, roomID string) (domain.ChatRoom, error) {
	room, ok, err := a.store.GetRoom(ctx, roomID)
	if err != nil {
		return domain.ChatRoom{}, fmt.Errorf("fetch room: %w", err)
	}
	if !ok {
		return domain.ChatRoom{}, ErrRoomNotFound
	}
	if room.IsGlobal {
		return room, nil
	}
	if p.Identity.IsGuest() || !room.HasMember(p.User.ID) {
		return domain.ChatRoom{}, ErrNotMember
	}
	return room, nil
}

func (a *App) writableRoom(ctx context.Context, p Principal, roomID string) (domain.ChatRoom, error) {
	if !session.CanSend(p.Identity) {
		return domain.ChatRoom{}, ErrSignInRequired
	}
	return a.readableRoom(ctx, p, roomID)
}

// ListMessages returns the latest messages of a room in chronological order.
func (a *App) ListMessages(ctx context.Context, p Principal, roomID string, limit int) ([]domain.ChatMessage, error) {
	room, err := a.readableRoom(ctx, p, roomID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	limit = min(limit, maxMessageLimit)
	msgs, err := a.store.ListMessages(ctx, room.ID, limit)
	if err != nil {
		slog.Error("list messages failed", "room_id", room.ID, "err", err)
		return []domain.ChatMessage{}, nil
	}
	return msgs, nil
}

// SendMessage posts text or a poll. Guests cannot post.
func (a *App) SendMessage(ctx context.Context, p Principal, roomID string, in MessageInput) (domain.ChatMessage, error) {
	room, err := a.writableRoom(ctx, p, roomID)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	msg := domain.ChatMessage{
		ID:         util.NewID(),
		RoomID:     room.ID,
		SenderName: p.Identity.Nickname,
		SenderID:   p.User.ID,
		CreatedAt:  a.now().UTC(),
		Type:       domain.MessageText,
	}
	if in.Poll != nil {
		poll, err := squad.NewPoll(in.Poll.Question, in.Poll.Options, p.User.ID)
		if err != nil {
			return domain.ChatMessage{}, err
		}
		msg.Type = domain.MessagePoll
		msg.Poll = &poll
	} else {
		msg.Text = strings.TrimSpace(in.Text)
		if msg.Text == "" {
			return domain.ChatMessage{}, ErrEmptyMessage
		}
	}
	if err := a.store.AppendMessage(ctx, msg); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("append message: %w", err)
	}
	a.publishRealtime(ctx, realtime.RoomTopic(room.ID), realtime.EventMessage, msg)
	return msg, nil
}

// Vote records the caller's choice on a poll, replacing any earlier vote.
func (a *App) Vote(ctx context.Context, p Principal, roomID, messageID, optionID string) (domain.ChatMessage, error) {
	room, err := a.writableRoom(ctx, p, roomID)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	existing, ok, err := a.store.GetMessage(ctx, messageID)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("fetch message: %w", err)
	}
	if !ok || existing.RoomID != room.ID {
		return domain.ChatMessage{}, ErrMessageNotFound
	}
	if existing.Type != domain.MessagePoll || existing.Poll == nil {
		return domain.ChatMessage{}, ErrNotAPoll
	}
	msg, err := a.store.UpdatePoll(ctx, messageID, func(poll domain.Poll) (domain.Poll, error) {
		return squad.Vote(poll, p.User.ID, optionID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ChatMessage{}, ErrMessageNotFound
		}
		return domain.ChatMessage{}, fmt.Errorf("update poll: %w", err)
	}
	a.publishRealtime(ctx, realtime.RoomTopic(room.ID), realtime.EventPollUpdated, msg)
	return msg, nil
}

// Subscribe follows a room's realtime events until ctx ends or the
// subscription is closed.
func (a *App) Subscribe(ctx context.Context, p Principal, roomID string) (realtime.Subscription, error) {
	room, err := a.readableRoom(ctx, p, roomID)
	if err != nil {
		return nil, err
	}
	sub, err := a.broker.Subscribe(ctx, realtime.RoomTopic(room.ID))
	if err != nil {
		return nil, fmt.Errorf("subscribe room: %w", err)
	}
	return sub, nil
}

// SubscribeSession follows the caller's session events.
func (a *App) SubscribeSession(ctx context.Context, p Principal) (realtime.Subscription, error) {
	if p.Identity.IsGuest() {
		return nil, ErrSignInRequired
	}
	sub, err := a.broker.Subscribe(ctx, realtime.SessionTopic(p.User.ID))
	if err != nil {
		return nil, fmt.Errorf("subscribe session: %w", err)
	}
	return sub, nil
}
