package squad

import (
	"context"
	"strings"

	"turfhub/pkg/domain"
)

// State is where a member is in the join/create flow.
type State int

const (
	StateIdle State = iota
	StateAwaitingCode
	StateNaming
	StateJoined
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingCode:
		return "awaiting-code"
	case StateNaming:
		return "naming"
	case StateJoined:
		return "joined"
	default:
		return "unknown"
	}
}

// Directory finds squads by join code.
type Directory interface {
	FindRoomByJoinCode(ctx context.Context, code string) (domain.ChatRoom, bool, error)
}

// Creator deploys a new squad.
type Creator interface {
	CreateSquad(ctx context.Context, name, description string) (domain.ChatRoom, error)
}

// Session tracks one member's progress toward a squad.
// Failed lookups leave the state untouched.
type Session struct {
	state State
	room  domain.ChatRoom
}

func NewSession() *Session {
	return &Session{state: StateIdle}
}

func (s *Session) State() State { return s.state }

// Room returns the joined squad.
func (s *Session) Room() (domain.ChatRoom, bool) {
	if s.state != StateJoined {
		return domain.ChatRoom{}, false
	}
	return s.room, true
}

// BeginJoin opens code entry.
func (s *Session) BeginJoin() error {
	if s.state != StateIdle {
		return ErrInvalidTransition
	}
	s.state = StateAwaitingCode
	return nil
}

// BeginCreate opens squad naming.
func (s *Session) BeginCreate() error {
	if s.state != StateIdle {
		return ErrInvalidTransition
	}
	s.state = StateNaming
	return nil
}

// Cancel abandons code entry or naming.
func (s *Session) Cancel() {
	if s.state == StateAwaitingCode || s.state == StateNaming {
		s.state = StateIdle
	}
}

// Leave drops the joined squad.
func (s *Session) Leave() {
	s.state = StateIdle
	s.room = domain.ChatRoom{}
}

// SubmitCode validates the code length first and only then asks the directory.
func (s *Session) SubmitCode(ctx context.Context, code string, dir Directory) (domain.ChatRoom, error) {
	if s.state != StateAwaitingCode {
		return domain.ChatRoom{}, ErrInvalidTransition
	}
	code = strings.TrimSpace(code)
	if err := ValidateJoinCode(code); err != nil {
		return domain.ChatRoom{}, err
	}
	room, ok, err := dir.FindRoomByJoinCode(ctx, code)
	if err != nil {
		return domain.ChatRoom{}, err
	}
	if !ok {
		return domain.ChatRoom{}, ErrRoomNotFound
	}
	s.room = room
	s.state = StateJoined
	return room, nil
}

// SubmitName deploys a squad and joins it.
func (s *Session) SubmitName(ctx context.Context, name, description string, creator Creator) (domain.ChatRoom, error) {
	if s.state != StateNaming {
		return domain.ChatRoom{}, ErrInvalidTransition
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ChatRoom{}, ErrEmptyName
	}
	room, err := creator.CreateSquad(ctx, name, strings.TrimSpace(description))
	if err != nil {
		return domain.ChatRoom{}, err
	}
	s.room = room
	s.state = StateJoined
	return room, nil
}
