package store

import (
	"time"

	"gorm.io/datatypes"
)

// Storage rows. Field names on the wire and in the database are snake_case;
// the domain types use camelCase. mapper.go converts between the two.

type UserRow struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	Email         string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash  string    `gorm:"not null" json:"password_hash"`
	Role          string    `gorm:"not null" json:"role"`
	Nickname      string    `gorm:"not null" json:"nickname"`
	EmailVerified bool      `gorm:"not null;default:false" json:"email_verified"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (UserRow) TableName() string { return "users" }

type SlotRow struct {
	ID        string `json:"id"`
	Time      string `json:"time"`
	Price     int    `json:"price"`
	Available bool   `json:"available"`
}

type CategoryRow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UnitCount int       `json:"unit_count"`
	Price     int       `json:"price"`
	Slots     []SlotRow `json:"slots"`
}

type HubRow struct {
	ID           string                           `gorm:"primaryKey" json:"id"`
	OwnerID      string                           `gorm:"column:owner_id;not null;index" json:"owner_id"`
	Name         string                           `gorm:"not null" json:"name"`
	Category     string                           `gorm:"not null" json:"category"`
	Location     string                           `json:"location"`
	Rating       float64                          `json:"rating"`
	Images       datatypes.JSONSlice[string]      `json:"images"`
	PriceStart   int                              `gorm:"column:price_start" json:"price_start"`
	Description  string                           `json:"description"`
	Amenities    datatypes.JSONSlice[string]      `json:"amenities"`
	Slots        datatypes.JSONSlice[SlotRow]     `json:"slots"`
	Categories   datatypes.JSONSlice[CategoryRow] `json:"categories"`
	IsSoldOut    bool                             `gorm:"column:is_sold_out" json:"is_sold_out"`
	ContactPhone string                           `gorm:"column:contact_phone" json:"contact_phone"`
	ContactEmail string                           `gorm:"column:contact_email" json:"contact_email"`
	UPIID        string                           `gorm:"column:upi_id" json:"upi_id"`
	IsBestseller bool                             `gorm:"column:is_bestseller" json:"is_bestseller"`
	CreatedAt    time.Time                        `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time                        `json:"updated_at"`
}

func (HubRow) TableName() string { return "hubs" }

type BookingRow struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	HubID         string    `gorm:"column:hub_id;not null;index:idx_bookings_hub_status" json:"hub_id"`
	HubName       string    `json:"hub_name"`
	SlotID        string    `json:"slot_id"`
	SlotTime      string    `json:"slot_time"`
	UserName      string    `gorm:"not null;index" json:"user_name"`
	UserID        string    `gorm:"index" json:"user_id"`
	Date          string    `json:"date"`
	CreatedAt     time.Time `gorm:"not null;index" json:"created_at"`
	Status        string    `gorm:"not null;index:idx_bookings_hub_status" json:"status"`
	PaymentMethod string    `json:"payment_method"`
	AccessoryName string    `json:"accessory_name"`
	BasePrice     int       `json:"base_price"`
	ServiceFee    int       `json:"service_fee"`
	TotalPrice    int       `json:"total_price"`
}

func (BookingRow) TableName() string { return "bookings" }

type RoomRow struct {
	ID          string                      `gorm:"primaryKey" json:"id"`
	Name        string                      `gorm:"not null" json:"name"`
	Description string                      `json:"description"`
	IsGlobal    bool                        `gorm:"not null;default:false" json:"is_global"`
	JoinCode    *string                     `gorm:"uniqueIndex" json:"join_code"`
	CreatedBy   string                      `json:"created_by"`
	Members     datatypes.JSONSlice[string] `json:"members"`
	CreatedAt   time.Time                   `gorm:"not null" json:"created_at"`
}

func (RoomRow) TableName() string { return "rooms" }

type MessageRow struct {
	ID         string         `gorm:"primaryKey" json:"id"`
	RoomID     string         `gorm:"not null;index" json:"room_id"`
	SenderName string         `gorm:"not null" json:"sender_name"`
	SenderID   string         `json:"sender_id"`
	Text       string         `json:"text"`
	CreatedAt  time.Time      `gorm:"not null;index" json:"created_at"`
	Type       string         `gorm:"not null" json:"type"`
	Poll       datatypes.JSON `json:"poll"`
}

func (MessageRow) TableName() string { return "messages" }
