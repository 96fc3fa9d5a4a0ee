package fee

import "errors"

const (
	// FreeBookingThreshold is the number of confirmed bookings a hub gets without a service fee.
	FreeBookingThreshold = 50
	// FlatServiceFee is charged on every booking past the threshold, regardless of slot price.
	FlatServiceFee = 10
)

// ErrNoSlotSelected indicates no price is available to quote against.
var ErrNoSlotSelected = errors.New("no slot selected")

// Quote is the price breakdown shown before a booking is confirmed.
type Quote struct {
	BasePrice  int `json:"basePrice"`
	ServiceFee int `json:"serviceFee"`
	TotalPrice int `json:"totalPrice"`
}

// ServiceFee returns the fee for a hub that already has confirmedCount confirmed bookings.
func ServiceFee(confirmedCount int) int {
	if confirmedCount < FreeBookingThreshold {
		return 0
	}
	return FlatServiceFee
}

// Total adds the service fee to the slot price.
func Total(price, serviceFee int) int {
	return price + serviceFee
}

// Compute builds a quote from the selected slot price and the hub's current confirmed count.
// The count must be read at booking time, not cached.
func Compute(price *int, confirmedCount int) (Quote, error) {
	if price == nil {
		return Quote{}, ErrNoSlotSelected
	}
	serviceFee := ServiceFee(confirmedCount)
	return Quote{
		BasePrice:  *price,
		ServiceFee: serviceFee,
		TotalPrice: Total(*price, serviceFee),
	}, nil
}
