// Package events carries domain events between the API and background workers.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultExchange is the topic exchange used when none is configured.
const DefaultExchange = "turfhub.events"

// Routing keys on the topic exchange.
const (
	RKVerificationRequested = "user.verification_requested"
	RKBookingCreated        = "booking.created"
	RKBookingConfirmed      = "booking.confirmed"
	RKBookingCancelled      = "booking.cancelled"
	RKBookingExpired        = "booking.expired"
)

type VerificationRequested struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Nickname  string    `json:"nickname"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type BookingCreated struct {
	BookingID     string `json:"booking_id"`
	HubID         string `json:"hub_id"`
	HubName       string `json:"hub_name"`
	OwnerEmail    string `json:"owner_email,omitempty"`
	UserName      string `json:"user_name"`
	SlotTime      string `json:"slot_time"`
	Date          string `json:"date"`
	AccessoryName string `json:"accessory_name,omitempty"`
	TotalPrice    int    `json:"total_price"`
}

// BookingStatusChanged is published for confirmed, cancelled and expired bookings.
type BookingStatusChanged struct {
	BookingID string `json:"booking_id"`
	HubName   string `json:"hub_name"`
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email,omitempty"`
	Status    string `json:"status"`
}

// Decode unmarshals a delivery body into T.
func Decode[T any](b []byte) (T, error) {
	var t T
	if err := json.Unmarshal(b, &t); err != nil {
		var zero T
		return zero, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
