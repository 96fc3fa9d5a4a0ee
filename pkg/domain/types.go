package domain

import "time"

type Role string

const (
	RoleGuest Role = "guest"
	RoleUser  Role = "user"
	RoleOwner Role = "owner"
)

// ParseRole maps free-form metadata to a known role. Unknown values fall back to user.
func ParseRole(raw string) Role {
	switch Role(raw) {
	case RoleOwner:
		return RoleOwner
	case RoleGuest:
		return RoleGuest
	default:
		return RoleUser
	}
}

type HubCategory string

const (
	CategoryTurf       HubCategory = "TURF"
	CategoryGamingCafe HubCategory = "GAMING_CAFE"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingExpired   BookingStatus = "expired"
)

type MessageType string

const (
	MessageText   MessageType = "text"
	MessagePoll   MessageType = "poll"
	MessageSystem MessageType = "system"
)

// GlobalRoomID is the id of the always-present public room.
const GlobalRoomID = "global"

type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Role          Role      `json:"role"`
	Nickname      string    `json:"nickname"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type TimeSlot struct {
	ID        string `json:"id"`
	Time      string `json:"time"`
	Price     int    `json:"price"`
	Available bool   `json:"available"`
}

// Category is a bookable unit group inside a gaming cafe (consoles, PCs, ...).
type Category struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	UnitCount int        `json:"unitCount"`
	Price     int        `json:"price"`
	Slots     []TimeSlot `json:"slots"`
}

type Hub struct {
	ID           string      `json:"id"`
	OwnerID      string      `json:"ownerId"`
	Name         string      `json:"name"`
	Category     HubCategory `json:"category"`
	Location     string      `json:"location"`
	Rating       float64     `json:"rating"`
	Images       []string    `json:"images"`
	PriceStart   int         `json:"priceStart"`
	Description  string      `json:"description"`
	Amenities    []string    `json:"amenities"`
	Slots        []TimeSlot  `json:"slots"`
	Categories   []Category  `json:"categories"`
	IsSoldOut    bool        `json:"isSoldOut"`
	ContactPhone string      `json:"contactPhone"`
	ContactEmail string      `json:"contactEmail"`
	UPIID        string      `json:"upiId"`
	IsBestseller bool        `json:"isBestseller"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// FindSlot looks up a slot by id, searching category slots for cafes.
// The returned category is empty for turf slots.
func (h Hub) FindSlot(slotID string) (TimeSlot, Category, bool) {
	for _, s := range h.Slots {
		if s.ID == slotID {
			return s, Category{}, true
		}
	}
	for _, c := range h.Categories {
		for _, s := range c.Slots {
			if s.ID == slotID {
				return s, c, true
			}
		}
	}
	return TimeSlot{}, Category{}, false
}

type Booking struct {
	ID            string        `json:"id"`
	HubID         string        `json:"hubId"`
	HubName       string        `json:"hubName"`
	SlotID        string        `json:"slotId"`
	SlotTime      string        `json:"slotTime"`
	UserName      string        `json:"userName"`
	UserID        string        `json:"userId,omitempty"`
	Date          string        `json:"date"`
	CreatedAt     time.Time     `json:"createdAt"`
	Status        BookingStatus `json:"status"`
	PaymentMethod string        `json:"paymentMethod"`
	AccessoryName string        `json:"accessoryName,omitempty"`
	BasePrice     int           `json:"basePrice"`
	ServiceFee    int           `json:"serviceFee"`
	TotalPrice    int           `json:"totalPrice"`
}

type ChatRoom struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsGlobal    bool      `json:"isGlobal"`
	JoinCode    string    `json:"joinCode,omitempty"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	Members     []string  `json:"members"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HasMember reports whether userID may post to the room.
func (r ChatRoom) HasMember(userID string) bool {
	if r.IsGlobal {
		return true
	}
	for _, m := range r.Members {
		if m == userID {
			return true
		}
	}
	return false
}

type ChatMessage struct {
	ID         string      `json:"id"`
	RoomID     string      `json:"roomId"`
	SenderName string      `json:"senderName"`
	SenderID   string      `json:"senderId,omitempty"`
	Text       string      `json:"text,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	Type       MessageType `json:"type"`
	Poll       *Poll       `json:"poll,omitempty"`
}

type PollOption struct {
	ID    string   `json:"id"`
	Text  string   `json:"text"`
	Votes []string `json:"votes"`
}

type Poll struct {
	ID        string       `json:"id"`
	Question  string       `json:"question"`
	Options   []PollOption `json:"options"`
	CreatedBy string       `json:"createdBy"`
}
