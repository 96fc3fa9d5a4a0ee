package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"

	"turfhub/pkg/domain"
	"turfhub/pkg/session"
)

// ErrInvalidPoll indicates a poll payload that breaks the one-vote-per-voter rule or is incomplete.
var ErrInvalidPoll = errors.New("invalid poll payload")

func userToRow(u domain.User) UserRow {
	return UserRow{
		ID:            u.ID,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		Role:          string(u.Role),
		Nickname:      u.Nickname,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func userFromRow(r UserRow) domain.User {
	return domain.User{
		ID:            r.ID,
		Email:         r.Email,
		PasswordHash:  r.PasswordHash,
		Role:          domain.ParseRole(r.Role),
		Nickname:      r.Nickname,
		EmailVerified: r.EmailVerified,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// HubFromRow maps a storage row to a hub. Absent lists become empty lists.
func HubFromRow(r HubRow) domain.Hub {
	h := domain.Hub{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		Name:         r.Name,
		Category:     domain.HubCategory(r.Category),
		Location:     r.Location,
		Rating:       r.Rating,
		Images:       nonNil(r.Images),
		PriceStart:   r.PriceStart,
		Description:  r.Description,
		Amenities:    nonNil(r.Amenities),
		Slots:        slotsFromRows(r.Slots),
		Categories:   make([]domain.Category, 0, len(r.Categories)),
		IsSoldOut:    r.IsSoldOut,
		ContactPhone: r.ContactPhone,
		ContactEmail: r.ContactEmail,
		UPIID:        r.UPIID,
		IsBestseller: r.IsBestseller,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if h.Category == "" {
		h.Category = domain.CategoryTurf
	}
	for _, c := range r.Categories {
		h.Categories = append(h.Categories, domain.Category{
			ID:        c.ID,
			Name:      c.Name,
			UnitCount: c.UnitCount,
			Price:     c.Price,
			Slots:     slotsFromRows(c.Slots),
		})
	}
	return h
}

// HubToRow maps a hub back to the storage field names used on read.
func HubToRow(h domain.Hub) HubRow {
	r := HubRow{
		ID:           h.ID,
		OwnerID:      h.OwnerID,
		Name:         h.Name,
		Category:     string(h.Category),
		Location:     h.Location,
		Rating:       h.Rating,
		Images:       nonNil(h.Images),
		PriceStart:   h.PriceStart,
		Description:  h.Description,
		Amenities:    nonNil(h.Amenities),
		Slots:        slotsToRows(h.Slots),
		Categories:   make([]CategoryRow, 0, len(h.Categories)),
		IsSoldOut:    h.IsSoldOut,
		ContactPhone: h.ContactPhone,
		ContactEmail: h.ContactEmail,
		UPIID:        h.UPIID,
		IsBestseller: h.IsBestseller,
		CreatedAt:    h.CreatedAt,
		UpdatedAt:    h.UpdatedAt,
	}
	for _, c := range h.Categories {
		r.Categories = append(r.Categories, CategoryRow{
			ID:        c.ID,
			Name:      c.Name,
			UnitCount: c.UnitCount,
			Price:     c.Price,
			Slots:     slotsToRows(c.Slots),
		})
	}
	return r
}

func slotsFromRows(rows []SlotRow) []domain.TimeSlot {
	out := make([]domain.TimeSlot, 0, len(rows))
	for _, s := range rows {
		out = append(out, domain.TimeSlot{ID: s.ID, Time: s.Time, Price: s.Price, Available: s.Available})
	}
	return out
}

func slotsToRows(slots []domain.TimeSlot) []SlotRow {
	out := make([]SlotRow, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotRow{ID: s.ID, Time: s.Time, Price: s.Price, Available: s.Available})
	}
	return out
}

func BookingFromRow(r BookingRow) domain.Booking {
	return domain.Booking{
		ID:            r.ID,
		HubID:         r.HubID,
		HubName:       r.HubName,
		SlotID:        r.SlotID,
		SlotTime:      r.SlotTime,
		UserName:      r.UserName,
		UserID:        r.UserID,
		Date:          r.Date,
		CreatedAt:     r.CreatedAt,
		Status:        domain.BookingStatus(r.Status),
		PaymentMethod: r.PaymentMethod,
		AccessoryName: r.AccessoryName,
		BasePrice:     r.BasePrice,
		ServiceFee:    r.ServiceFee,
		TotalPrice:    r.TotalPrice,
	}
}

func BookingToRow(b domain.Booking) BookingRow {
	return BookingRow{
		ID:            b.ID,
		HubID:         b.HubID,
		HubName:       b.HubName,
		SlotID:        b.SlotID,
		SlotTime:      b.SlotTime,
		UserName:      b.UserName,
		UserID:        b.UserID,
		Date:          b.Date,
		CreatedAt:     b.CreatedAt,
		Status:        string(b.Status),
		PaymentMethod: b.PaymentMethod,
		AccessoryName: b.AccessoryName,
		BasePrice:     b.BasePrice,
		ServiceFee:    b.ServiceFee,
		TotalPrice:    b.TotalPrice,
	}
}

func RoomFromRow(r RoomRow) domain.ChatRoom {
	room := domain.ChatRoom{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsGlobal:    r.IsGlobal,
		CreatedBy:   r.CreatedBy,
		Members:     nonNil(r.Members),
		CreatedAt:   r.CreatedAt,
	}
	if r.JoinCode != nil {
		room.JoinCode = *r.JoinCode
	}
	return room
}

func RoomToRow(room domain.ChatRoom) RoomRow {
	r := RoomRow{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		IsGlobal:    room.IsGlobal,
		CreatedBy:   room.CreatedBy,
		Members:     nonNil(room.Members),
		CreatedAt:   room.CreatedAt,
	}
	if room.JoinCode != "" {
		code := room.JoinCode
		r.JoinCode = &code
	}
	return r
}

// MessageFromRow maps a message row; the poll column may hold an object or a JSON-encoded string.
func MessageFromRow(r MessageRow) (domain.ChatMessage, error) {
	poll, err := DecodePoll(r.Poll)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("decode poll for message %s: %w", r.ID, err)
	}
	msgType := domain.MessageType(r.Type)
	if msgType == "" {
		msgType = domain.MessageText
	}
	return domain.ChatMessage{
		ID:         r.ID,
		RoomID:     r.RoomID,
		SenderName: r.SenderName,
		SenderID:   r.SenderID,
		Text:       r.Text,
		CreatedAt:  r.CreatedAt,
		Type:       msgType,
		Poll:       poll,
	}, nil
}

// MessageToRow validates the poll and always writes it as an object.
func MessageToRow(m domain.ChatMessage) (MessageRow, error) {
	poll, err := EncodePoll(m.Poll)
	if err != nil {
		return MessageRow{}, err
	}
	return MessageRow{
		ID:         m.ID,
		RoomID:     m.RoomID,
		SenderName: m.SenderName,
		SenderID:   m.SenderID,
		Text:       m.Text,
		CreatedAt:  m.CreatedAt,
		Type:       string(m.Type),
		Poll:       poll,
	}, nil
}

// DecodePoll accepts a poll object, a JSON string holding a poll object, or nothing.
func DecodePoll(raw []byte) (*domain.Poll, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, err
		}
		return DecodePoll([]byte(inner))
	}
	var p domain.Poll
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	for i := range p.Options {
		p.Options[i].Votes = nonNil(p.Options[i].Votes)
	}
	return &p, nil
}

// EncodePoll validates a poll and serializes it as an object.
func EncodePoll(p *domain.Poll) (datatypes.JSON, error) {
	if p == nil {
		return nil, nil
	}
	if err := ValidatePoll(*p); err != nil {
		return nil, err
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// ValidatePoll checks structure and the at-most-one-vote rule.
func ValidatePoll(p domain.Poll) error {
	if p.ID == "" || p.Question == "" || len(p.Options) < 2 {
		return ErrInvalidPoll
	}
	seen := make(map[string]bool)
	for _, opt := range p.Options {
		if opt.ID == "" {
			return ErrInvalidPoll
		}
		for _, v := range opt.Votes {
			if seen[v] {
				return fmt.Errorf("%w: voter %s counted twice", ErrInvalidPoll, v)
			}
			seen[v] = true
		}
	}
	return nil
}

// VisibleHubs returns the hubs an identity works with: owners see only their own,
// everyone else sees the public listing.
func VisibleHubs(hubs []domain.Hub, id session.Identity) []domain.Hub {
	if !id.IsOwner() {
		return nonNil(hubs)
	}
	out := make([]domain.Hub, 0, len(hubs))
	for _, h := range hubs {
		if h.OwnerID == id.UserID {
			out = append(out, h)
		}
	}
	return out
}

// VisibleBookings keeps bookings on owned hubs for owners and the caller's own
// bookings for users. A booking carrying a user id matches on the id only; the
// nickname is compared for bookings recorded without one. Guests see none.
func VisibleBookings(bookings []domain.Booking, id session.Identity, ownedHubIDs []string) []domain.Booking {
	out := make([]domain.Booking, 0, len(bookings))
	switch {
	case id.IsGuest():
		return out
	case id.IsOwner():
		owned := make(map[string]bool, len(ownedHubIDs))
		for _, hid := range ownedHubIDs {
			owned[hid] = true
		}
		for _, b := range bookings {
			if owned[b.HubID] {
				out = append(out, b)
			}
		}
	default:
		for _, b := range bookings {
			if b.UserID != "" {
				if b.UserID == id.UserID {
					out = append(out, b)
				}
				continue
			}
			if b.UserName == id.Nickname {
				out = append(out, b)
			}
		}
	}
	return out
}

// HubIDs lists the ids of hubs.
func HubIDs(hubs []domain.Hub) []string {
	ids := make([]string, 0, len(hubs))
	for _, h := range hubs {
		ids = append(ids, h.ID)
	}
	return ids
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
