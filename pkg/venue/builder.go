// Package venue turns the owner's editable venue form into a validated hub.
package venue

import (
	"errors"
	"strconv"
	"strings"

	"turfhub/internal/util"
	"turfhub/pkg/domain"
)

var (
	ErrMissingName    = errors.New("venue name is required")
	ErrMissingAddress = errors.New("venue address is required")
	ErrMissingUPI     = errors.New("payment identifier is required")
)

const (
	fallbackPrice = 0
	fallbackUnits = 1
)

// SlotForm mirrors a slot row in the editor. Numbers arrive as typed text.
type SlotForm struct {
	ID        string `json:"id"`
	Time      string `json:"time"`
	Price     string `json:"price"`
	Available *bool  `json:"available,omitempty"`
}

type CategoryForm struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	UnitCount string     `json:"unitCount"`
	Price     string     `json:"price"`
	Slots     []SlotForm `json:"slots"`
}

// Form is the venue editor state. HubID is set when editing an existing hub.
type Form struct {
	HubID        string         `json:"hubId"`
	Name         string         `json:"name"`
	Category     string         `json:"category"`
	Location     string         `json:"location"`
	Description  string         `json:"description"`
	Images       []string       `json:"images"`
	Amenities    []string       `json:"amenities"`
	Slots        []SlotForm     `json:"slots"`
	Categories   []CategoryForm `json:"categories"`
	IsSoldOut    bool           `json:"isSoldOut"`
	IsBestseller bool           `json:"isBestseller"`
	ContactPhone string         `json:"contactPhone"`
	ContactEmail string         `json:"contactEmail"`
	UPIID        string         `json:"upiId"`
}

// IsEdit reports whether the form targets an existing hub.
func (f Form) IsEdit() bool {
	return strings.TrimSpace(f.HubID) != ""
}

// Validate checks the mandatory fields. It never touches storage.
func (f Form) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrMissingName
	}
	if strings.TrimSpace(f.Location) == "" {
		return ErrMissingAddress
	}
	if strings.TrimSpace(f.UPIID) == "" {
		return ErrMissingUPI
	}
	return nil
}

// ParsePrice coerces typed text to a price, 0 when it is not a number.
func ParsePrice(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return fallbackPrice
	}
	return n
}

// ParseUnits coerces typed text to a unit count, 1 when it is not a positive number.
func ParseUnits(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return fallbackUnits
	}
	return n
}

// ParseCategory maps editor input to a hub category; anything that is not a cafe is a turf.
func ParseCategory(raw string) domain.HubCategory {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(domain.CategoryGamingCafe), "CAFE", "GAMING CAFE":
		return domain.CategoryGamingCafe
	default:
		return domain.CategoryTurf
	}
}

// Build validates the form and converts it into a hub owned by ownerID.
// A turf keeps only slots and a cafe keeps only categories.
func Build(f Form, ownerID string) (domain.Hub, error) {
	if err := f.Validate(); err != nil {
		return domain.Hub{}, err
	}
	hub := domain.Hub{
		ID:           strings.TrimSpace(f.HubID),
		OwnerID:      ownerID,
		Name:         strings.TrimSpace(f.Name),
		Category:     ParseCategory(f.Category),
		Location:     strings.TrimSpace(f.Location),
		Description:  strings.TrimSpace(f.Description),
		Images:       cleanList(f.Images),
		Amenities:    cleanList(f.Amenities),
		Slots:        []domain.TimeSlot{},
		Categories:   []domain.Category{},
		IsSoldOut:    f.IsSoldOut,
		IsBestseller: f.IsBestseller,
		ContactPhone: strings.TrimSpace(f.ContactPhone),
		ContactEmail: strings.TrimSpace(f.ContactEmail),
		UPIID:        strings.TrimSpace(f.UPIID),
	}
	if hub.ID == "" {
		hub.ID = util.NewID()
	}
	switch hub.Category {
	case domain.CategoryGamingCafe:
		for _, cf := range f.Categories {
			hub.Categories = append(hub.Categories, buildCategory(cf))
		}
	default:
		hub.Slots = buildSlots(f.Slots)
	}
	hub.PriceStart = PriceFloor(hub)
	return hub, nil
}

// PriceFloor is the lowest slot price for a turf or the lowest category price for a cafe.
func PriceFloor(h domain.Hub) int {
	prices := make([]int, 0, len(h.Slots)+len(h.Categories))
	if h.Category == domain.CategoryGamingCafe {
		for _, c := range h.Categories {
			prices = append(prices, c.Price)
		}
	} else {
		for _, s := range h.Slots {
			prices = append(prices, s.Price)
		}
	}
	if len(prices) == 0 {
		return 0
	}
	floor := prices[0]
	for _, p := range prices[1:] {
		if p < floor {
			floor = p
		}
	}
	return floor
}

func buildCategory(cf CategoryForm) domain.Category {
	id := strings.TrimSpace(cf.ID)
	if id == "" {
		id = util.NewID()
	}
	return domain.Category{
		ID:        id,
		Name:      strings.TrimSpace(cf.Name),
		UnitCount: ParseUnits(cf.UnitCount),
		Price:     ParsePrice(cf.Price),
		Slots:     buildSlots(cf.Slots),
	}
}

func buildSlots(forms []SlotForm) []domain.TimeSlot {
	slots := make([]domain.TimeSlot, 0, len(forms))
	for _, sf := range forms {
		id := strings.TrimSpace(sf.ID)
		if id == "" {
			id = util.NewID()
		}
		available := true
		if sf.Available != nil {
			available = *sf.Available
		}
		slots = append(slots, domain.TimeSlot{
			ID:        id,
			Time:      strings.TrimSpace(sf.Time),
			Price:     ParsePrice(sf.Price),
			Available: available,
		})
	}
	return slots
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
