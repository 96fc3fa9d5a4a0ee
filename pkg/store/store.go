package store

import (
	"context"
	"errors"
	"time"

	"turfhub/pkg/domain"
	"turfhub/pkg/session"
)

var (
	// ErrNotFound indicates the row to update does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateJoinCode indicates another room already uses the join code.
	ErrDuplicateJoinCode = errors.New("join code already in use")
	// ErrStatusChanged indicates the booking left the expected status before the write.
	ErrStatusChanged = errors.New("booking status changed")
)

// Store is the row store behind the hubs, bookings, rooms and messages collections.
// Getters return ok=false with a nil error when the row is absent.
type Store interface {
	// users
	SaveUser(ctx context.Context, u domain.User) error
	HasUserEmail(ctx context.Context, email string) (bool, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)

	// hubs
	InsertHub(ctx context.Context, h domain.Hub) error
	UpdateHub(ctx context.Context, h domain.Hub) error
	GetHub(ctx context.Context, id string) (domain.Hub, bool, error)
	ListHubs(ctx context.Context) ([]domain.Hub, error)
	ListHubsByOwner(ctx context.Context, ownerID string) ([]domain.Hub, error)

	// bookings
	CreateBooking(ctx context.Context, b domain.Booking) error
	GetBooking(ctx context.Context, id string) (domain.Booking, bool, error)
	// SetBookingStatus moves a booking from one status to another. It returns
	// ErrStatusChanged when the booking is no longer in the from status.
	SetBookingStatus(ctx context.Context, id string, from, to domain.BookingStatus) error
	ListBookingsByUserName(ctx context.Context, userName string) ([]domain.Booking, error)
	ListBookingsByHubs(ctx context.Context, hubIDs []string) ([]domain.Booking, error)
	CountBookings(ctx context.Context, hubID string, status domain.BookingStatus) (int, error)

	// rooms
	CreateRoom(ctx context.Context, r domain.ChatRoom) error
	GetRoom(ctx context.Context, id string) (domain.ChatRoom, bool, error)
	FindRoomByJoinCode(ctx context.Context, code string) (domain.ChatRoom, bool, error)
	ListRoomsForMember(ctx context.Context, userID string) ([]domain.ChatRoom, error)
	AddRoomMember(ctx context.Context, roomID, userID string) (domain.ChatRoom, error)

	// messages
	AppendMessage(ctx context.Context, m domain.ChatMessage) error
	GetMessage(ctx context.Context, id string) (domain.ChatMessage, bool, error)
	ListMessages(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error)
	UpdatePoll(ctx context.Context, messageID string, fn func(domain.Poll) (domain.Poll, error)) (domain.ChatMessage, error)
}

// SessionStore issues and resolves access sessions.
type SessionStore interface {
	NewSession(u domain.User) (token string, expiresAt time.Time, err error)
	Resolve(token string) (session.Session, bool, error)
	DeleteSession(token string) error
}

// RefreshTokenStore keeps rotating refresh tokens.
type RefreshTokenStore interface {
	Issue(ctx context.Context, userID string, ttl time.Duration) (string, error)
	Rotate(ctx context.Context, token string, ttl time.Duration) (userID, next string, err error)
	Revoke(ctx context.Context, token string) error
}

// VerificationStore keeps single-use email verification tokens.
type VerificationStore interface {
	Issue(ctx context.Context, userID string, ttl time.Duration) (string, error)
	Consume(ctx context.Context, token string) (userID string, ok bool, err error)
}
