package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"turfhub/internal/util"
	"turfhub/pkg/domain"
	"turfhub/pkg/events"
	"turfhub/pkg/fee"
	"turfhub/pkg/payment"
	"turfhub/pkg/store"
)

const (
	dateLayout       = "2006-01-02"
	paymentMethodUPI = "UPI"
)

// BookingRequest selects a slot. CategoryID is required for gaming cafes.
type BookingRequest struct {
	HubID      string `json:"hubId"`
	SlotID     string `json:"slotId"`
	CategoryID string `json:"categoryId"`
	Date       string `json:"date"`
}

// Receipt is the created booking plus how to pay for it.
type Receipt struct {
	Booking domain.Booking        `json:"booking"`
	Payment *payment.Instructions `json:"payment,omitempty"`
}

type selection struct {
	hub      domain.Hub
	slot     domain.TimeSlot
	category domain.Category
	price    int
}

// Quote prices a slot against the hub's live confirmed-booking count.
func (a *App) Quote(ctx context.Context, req BookingRequest) (fee.Quote, error) {
	sel, err := a.selectSlot(ctx, req)
	if err != nil {
		return fee.Quote{}, err
	}
	return a.quote(ctx, sel)
}

func (a *App) quote(ctx context.Context, sel selection) (fee.Quote, error) {
	confirmed, err := a.store.CountBookings(ctx, sel.hub.ID, domain.BookingConfirmed)
	if err != nil {
		return fee.Quote{}, fmt.Errorf("count confirmed bookings: %w", err)
	}
	return fee.Compute(&sel.price, confirmed)
}

func (a *App) selectSlot(ctx context.Context, req BookingRequest) (selection, error) {
	hub, err := a.GetHub(ctx, strings.TrimSpace(req.HubID))
	if err != nil {
		return selection{}, err
	}
	slotID := strings.TrimSpace(req.SlotID)
	if slotID == "" {
		return selection{}, fee.ErrNoSlotSelected
	}
	sel := selection{hub: hub}
	if hub.Category == domain.CategoryGamingCafe {
		categoryID := strings.TrimSpace(req.CategoryID)
		if categoryID == "" {
			return selection{}, ErrCategoryRequired
		}
		for _, c := range hub.Categories {
			if c.ID != categoryID {
				continue
			}
			for _, s := range c.Slots {
				if s.ID == slotID {
					sel.slot, sel.category = s, c
					sel.price = s.Price
					if sel.price <= 0 {
						sel.price = c.Price
					}
					return sel, nil
				}
			}
		}
		return selection{}, ErrSlotNotFound
	}
	for _, s := range hub.Slots {
		if s.ID == slotID {
			sel.slot = s
			sel.price = s.Price
			return sel, nil
		}
	}
	return selection{}, ErrSlotNotFound
}

// CreateBooking books a slot for the calling user. The booking starts pending
// and expires unless the owner verifies payment within the payment window.
func (a *App) CreateBooking(ctx context.Context, p Principal, req BookingRequest) (Receipt, error) {
	if p.Identity.IsGuest() {
		return Receipt{}, ErrSignInRequired
	}
	if p.Identity.IsOwner() {
		return Receipt{}, ErrForbidden
	}
	date, err := a.bookingDate(req.Date)
	if err != nil {
		return Receipt{}, err
	}
	sel, err := a.selectSlot(ctx, req)
	if err != nil {
		return Receipt{}, err
	}
	if sel.hub.IsSoldOut {
		return Receipt{}, ErrHubSoldOut
	}
	if !sel.slot.Available {
		return Receipt{}, ErrSlotUnavailable
	}
	if err := a.checkCapacity(ctx, sel, date); err != nil {
		return Receipt{}, err
	}
	q, err := a.quote(ctx, sel)
	if err != nil {
		return Receipt{}, err
	}
	booking := domain.Booking{
		ID:            util.NewID(),
		HubID:         sel.hub.ID,
		HubName:       sel.hub.Name,
		SlotID:        sel.slot.ID,
		SlotTime:      sel.slot.Time,
		UserName:      p.Identity.Nickname,
		UserID:        p.User.ID,
		Date:          date,
		CreatedAt:     a.now().UTC(),
		Status:        domain.BookingPending,
		PaymentMethod: paymentMethodUPI,
		AccessoryName: sel.category.Name,
		BasePrice:     q.BasePrice,
		ServiceFee:    q.ServiceFee,
		TotalPrice:    q.TotalPrice,
	}
	if err := a.store.CreateBooking(ctx, booking); err != nil {
		return Receipt{}, fmt.Errorf("create booking: %w", err)
	}
	if a.expiry != nil {
		if err := a.expiry.Schedule(ctx, booking.ID, booking.CreatedAt.Add(a.paymentWindow)); err != nil {
			slog.Warn("schedule booking expiry failed", "booking_id", booking.ID, "err", err)
		}
	}
	a.publishEvent(ctx, events.RKBookingCreated, events.BookingCreated{
		BookingID:     booking.ID,
		HubID:         booking.HubID,
		HubName:       booking.HubName,
		OwnerEmail:    sel.hub.ContactEmail,
		UserName:      booking.UserName,
		SlotTime:      booking.SlotTime,
		Date:          booking.Date,
		AccessoryName: booking.AccessoryName,
		TotalPrice:    booking.TotalPrice,
	})

	receipt := Receipt{Booking: booking}
	note := fmt.Sprintf("%s %s %s", sel.hub.Name, booking.Date, booking.SlotTime)
	instr, err := payment.Build(a.qrEndpoint, sel.hub.UPIID, sel.hub.Name, booking.TotalPrice, note)
	if err != nil {
		slog.Warn("build payment link failed", "hub_id", sel.hub.ID, "err", err)
	} else {
		receipt.Payment = &instr
	}
	return receipt, nil
}

func (a *App) bookingDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return a.now().Format(dateLayout), nil
	}
	if _, err := time.Parse(dateLayout, raw); err != nil {
		return "", ErrInvalidDate
	}
	return raw, nil
}

// checkCapacity allows one active booking per turf slot and date, and up to
// the unit count for a cafe category slot.
func (a *App) checkCapacity(ctx context.Context, sel selection, date string) error {
	existing, err := a.store.ListBookingsByHubs(ctx, []string{sel.hub.ID})
	if err != nil {
		return fmt.Errorf("list hub bookings: %w", err)
	}
	capacity := 1
	if sel.category.ID != "" {
		capacity = max(sel.category.UnitCount, 1)
	}
	taken := 0
	for _, b := range existing {
		if b.SlotID == sel.slot.ID && b.Date == date && b.Status != domain.BookingExpired {
			taken++
		}
	}
	if taken >= capacity {
		return ErrSlotUnavailable
	}
	return nil
}

// ListBookings returns bookings visible to the caller: a user's own bookings,
// or every booking on an owner's venues. Store failures degrade to an empty list.
func (a *App) ListBookings(ctx context.Context, p Principal) ([]domain.Booking, error) {
	if p.Identity.IsGuest() {
		return nil, ErrSignInRequired
	}
	if p.Identity.IsOwner() {
		hubs, err := a.store.ListHubsByOwner(ctx, p.User.ID)
		if err != nil {
			slog.Error("list owner hubs failed", "owner_id", p.User.ID, "err", err)
			return []domain.Booking{}, nil
		}
		ids := store.HubIDs(hubs)
		if len(ids) == 0 {
			return []domain.Booking{}, nil
		}
		bookings, err := a.store.ListBookingsByHubs(ctx, ids)
		if err != nil {
			slog.Error("list hub bookings failed", "owner_id", p.User.ID, "err", err)
			return []domain.Booking{}, nil
		}
		return store.VisibleBookings(bookings, p.Identity, ids), nil
	}
	bookings, err := a.store.ListBookingsByUserName(ctx, p.Identity.Nickname)
	if err != nil {
		slog.Error("list user bookings failed", "user_id", p.User.ID, "err", err)
		return []domain.Booking{}, nil
	}
	return store.VisibleBookings(bookings, p.Identity, nil), nil
}

// VerifyBooking confirms a pending booking after the owner checks the payment.
func (a *App) VerifyBooking(ctx context.Context, p Principal, bookingID string) (domain.Booking, error) {
	return a.transitionBooking(ctx, p, bookingID, domain.BookingConfirmed, events.RKBookingConfirmed)
}

// CancelBooking lets the owner reject a pending booking. It ends up expired.
func (a *App) CancelBooking(ctx context.Context, p Principal, bookingID string) (domain.Booking, error) {
	return a.transitionBooking(ctx, p, bookingID, domain.BookingExpired, events.RKBookingCancelled)
}

func (a *App) transitionBooking(ctx context.Context, p Principal, bookingID string, status domain.BookingStatus, key string) (domain.Booking, error) {
	if !p.Identity.IsOwner() {
		return domain.Booking{}, ErrForbidden
	}
	booking, ok, err := a.store.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("fetch booking: %w", err)
	}
	if !ok {
		return domain.Booking{}, ErrBookingNotFound
	}
	hub, err := a.GetHub(ctx, booking.HubID)
	if err != nil {
		if errors.Is(err, ErrHubNotFound) {
			return domain.Booking{}, ErrForbidden
		}
		return domain.Booking{}, err
	}
	if hub.OwnerID != p.User.ID {
		return domain.Booking{}, ErrForbidden
	}
	if booking.Status != domain.BookingPending {
		return domain.Booking{}, ErrBookingClosed
	}
	if err := a.store.SetBookingStatus(ctx, booking.ID, domain.BookingPending, status); err != nil {
		if errors.Is(err, store.ErrStatusChanged) {
			return domain.Booking{}, ErrBookingClosed
		}
		return domain.Booking{}, fmt.Errorf("update booking status: %w", err)
	}
	booking.Status = status
	if a.expiry != nil {
		if err := a.expiry.Cancel(ctx, booking.ID); err != nil {
			slog.Warn("cancel booking expiry failed", "booking_id", booking.ID, "err", err)
		}
	}
	a.publishStatus(ctx, booking, key)
	return booking, nil
}

// ExpireBooking marks a still-pending booking expired. Bookings already
// confirmed or expired are left alone.
func (a *App) ExpireBooking(ctx context.Context, bookingID string) error {
	booking, ok, err := a.store.GetBooking(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("fetch booking: %w", err)
	}
	if !ok || booking.Status != domain.BookingPending {
		return nil
	}
	if err := a.store.SetBookingStatus(ctx, booking.ID, domain.BookingPending, domain.BookingExpired); err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrStatusChanged) {
			return nil
		}
		return fmt.Errorf("expire booking: %w", err)
	}
	booking.Status = domain.BookingExpired
	slog.Info("booking expired", "booking_id", booking.ID, "hub_id", booking.HubID)
	a.publishStatus(ctx, booking, events.RKBookingExpired)
	return nil
}

func (a *App) publishStatus(ctx context.Context, b domain.Booking, key string) {
	evt := events.BookingStatusChanged{
		BookingID: b.ID,
		HubName:   b.HubName,
		UserName:  b.UserName,
		Status:    string(b.Status),
	}
	if b.UserID != "" {
		user, ok, err := a.store.GetUserByID(ctx, b.UserID)
		if err != nil {
			slog.Warn("lookup booking user failed", "booking_id", b.ID, "err", err)
		} else if ok {
			evt.UserEmail = user.Email
		}
	}
	a.publishEvent(ctx, key, evt)
}
