package store

import (
	"context"
	"sort"
	"sync"

	"turfhub/pkg/domain"
)

// MemoryStore keeps every collection in-process. Rows are stored in their
// storage shape so reads go through the same mapper as Postgres.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]UserRow
	emails     map[string]string // email -> user ID
	hubs       map[string]HubRow
	hubOrder   []string
	bookings   map[string]BookingRow
	bookOrder  []string
	rooms      map[string]RoomRow
	roomOrder  []string
	messages   map[string]MessageRow
	roomMsgIDs map[string][]string
}

// NewMemoryStore initializes an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]UserRow),
		emails:     make(map[string]string),
		hubs:       make(map[string]HubRow),
		bookings:   make(map[string]BookingRow),
		rooms:      make(map[string]RoomRow),
		messages:   make(map[string]MessageRow),
		roomMsgIDs: make(map[string][]string),
	}
}

func (m *MemoryStore) SaveUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok && prev.Email != u.Email {
		delete(m.emails, prev.Email)
	}
	m.users[u.ID] = userToRow(u)
	m.emails[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) HasUserEmail(_ context.Context, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.emails[email]
	return ok, nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	m.mu.RLock()
	id, ok := m.emails[email]
	m.mu.RUnlock()
	if !ok {
		return domain.User{}, false, nil
	}
	return m.GetUserByID(ctx, id)
}

func (m *MemoryStore) GetUserByID(_ context.Context, id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.users[id]
	if !ok {
		return domain.User{}, false, nil
	}
	return userFromRow(row), true, nil
}

func (m *MemoryStore) InsertHub(_ context.Context, h domain.Hub) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.hubs[h.ID]; !exists {
		m.hubOrder = append(m.hubOrder, h.ID)
	}
	m.hubs[h.ID] = HubToRow(h)
	return nil
}

func (m *MemoryStore) UpdateHub(_ context.Context, h domain.Hub) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.hubs[h.ID]
	if !ok {
		return ErrNotFound
	}
	row := HubToRow(h)
	row.CreatedAt = prev.CreatedAt
	m.hubs[h.ID] = row
	return nil
}

func (m *MemoryStore) GetHub(_ context.Context, id string) (domain.Hub, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.hubs[id]
	if !ok {
		return domain.Hub{}, false, nil
	}
	return HubFromRow(row), true, nil
}

func (m *MemoryStore) ListHubs(_ context.Context) ([]domain.Hub, error) {
	return m.filterHubs(func(HubRow) bool { return true }), nil
}

func (m *MemoryStore) ListHubsByOwner(_ context.Context, ownerID string) ([]domain.Hub, error) {
	return m.filterHubs(func(r HubRow) bool { return r.OwnerID == ownerID }), nil
}

func (m *MemoryStore) filterHubs(keep func(HubRow) bool) []domain.Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Hub, 0, len(m.hubOrder))
	for _, id := range m.hubOrder {
		if row, ok := m.hubs[id]; ok && keep(row) {
			out = append(out, HubFromRow(row))
		}
	}
	return out
}

func (m *MemoryStore) CreateBooking(_ context.Context, b domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bookings[b.ID]; !exists {
		m.bookOrder = append(m.bookOrder, b.ID)
	}
	m.bookings[b.ID] = BookingToRow(b)
	return nil
}

func (m *MemoryStore) GetBooking(_ context.Context, id string) (domain.Booking, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.bookings[id]
	if !ok {
		return domain.Booking{}, false, nil
	}
	return BookingFromRow(row), true, nil
}

func (m *MemoryStore) SetBookingStatus(_ context.Context, id string, from, to domain.BookingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.bookings[id]
	if !ok {
		return ErrNotFound
	}
	if row.Status != string(from) {
		return ErrStatusChanged
	}
	row.Status = string(to)
	m.bookings[id] = row
	return nil
}

func (m *MemoryStore) ListBookingsByUserName(_ context.Context, userName string) ([]domain.Booking, error) {
	return m.filterBookings(func(r BookingRow) bool { return r.UserName == userName }), nil
}

func (m *MemoryStore) ListBookingsByHubs(_ context.Context, hubIDs []string) ([]domain.Booking, error) {
	set := make(map[string]bool, len(hubIDs))
	for _, id := range hubIDs {
		set[id] = true
	}
	return m.filterBookings(func(r BookingRow) bool { return set[r.HubID] }), nil
}

func (m *MemoryStore) CountBookings(_ context.Context, hubID string, status domain.BookingStatus) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, row := range m.bookings {
		if row.HubID == hubID && row.Status == string(status) {
			n++
		}
	}
	return n, nil
}

// filterBookings returns matches newest first.
func (m *MemoryStore) filterBookings(keep func(BookingRow) bool) []domain.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Booking, 0)
	for i := len(m.bookOrder) - 1; i >= 0; i-- {
		if row, ok := m.bookings[m.bookOrder[i]]; ok && keep(row) {
			out = append(out, BookingFromRow(row))
		}
	}
	return out
}

func (m *MemoryStore) CreateRoom(_ context.Context, r domain.ChatRoom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.JoinCode != "" {
		for _, existing := range m.rooms {
			if existing.JoinCode != nil && *existing.JoinCode == r.JoinCode && existing.ID != r.ID {
				return ErrDuplicateJoinCode
			}
		}
	}
	if _, exists := m.rooms[r.ID]; !exists {
		m.roomOrder = append(m.roomOrder, r.ID)
	}
	m.rooms[r.ID] = RoomToRow(r)
	return nil
}

func (m *MemoryStore) GetRoom(_ context.Context, id string) (domain.ChatRoom, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rooms[id]
	if !ok {
		return domain.ChatRoom{}, false, nil
	}
	return RoomFromRow(row), true, nil
}

func (m *MemoryStore) FindRoomByJoinCode(_ context.Context, code string) (domain.ChatRoom, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, row := range m.rooms {
		if row.JoinCode != nil && *row.JoinCode == code {
			return RoomFromRow(row), true, nil
		}
	}
	return domain.ChatRoom{}, false, nil
}

func (m *MemoryStore) ListRoomsForMember(_ context.Context, userID string) ([]domain.ChatRoom, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ChatRoom, 0, len(m.roomOrder))
	for _, id := range m.roomOrder {
		room := RoomFromRow(m.rooms[id])
		if room.HasMember(userID) {
			out = append(out, room)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].IsGlobal && !out[j].IsGlobal })
	return out, nil
}

func (m *MemoryStore) AddRoomMember(_ context.Context, roomID, userID string) (domain.ChatRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rooms[roomID]
	if !ok {
		return domain.ChatRoom{}, ErrNotFound
	}
	room := RoomFromRow(row)
	if !room.HasMember(userID) {
		room.Members = append(room.Members, userID)
		m.rooms[roomID] = RoomToRow(room)
	}
	return room, nil
}

func (m *MemoryStore) AppendMessage(_ context.Context, msg domain.ChatMessage) error {
	row, err := MessageToRow(msg)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ID] = row
	m.roomMsgIDs[msg.RoomID] = append(m.roomMsgIDs[msg.RoomID], msg.ID)
	return nil
}

func (m *MemoryStore) GetMessage(_ context.Context, id string) (domain.ChatMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.messages[id]
	if !ok {
		return domain.ChatMessage{}, false, nil
	}
	msg, err := MessageFromRow(row)
	if err != nil {
		return domain.ChatMessage{}, false, err
	}
	return msg, true, nil
}

func (m *MemoryStore) ListMessages(_ context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.roomMsgIDs[roomID]
	if limit > 0 && len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}
	out := make([]domain.ChatMessage, 0, len(ids))
	for _, id := range ids {
		msg, err := MessageFromRow(m.messages[id])
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

func (m *MemoryStore) UpdatePoll(_ context.Context, messageID string, fn func(domain.Poll) (domain.Poll, error)) (domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.messages[messageID]
	if !ok {
		return domain.ChatMessage{}, ErrNotFound
	}
	msg, err := MessageFromRow(row)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	if msg.Poll == nil {
		return domain.ChatMessage{}, ErrInvalidPoll
	}
	updated, err := fn(*msg.Poll)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	msg.Poll = &updated
	next, err := MessageToRow(msg)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	m.messages[messageID] = next
	return msg, nil
}
