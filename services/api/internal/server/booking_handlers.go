package server

import (
	"net/http"
	"strings"

	"turfhub/services/api/internal/app"
)

// /bookings
func (s *Server) handleBookings(w http.ResponseWriter, r *http.Request, p app.Principal) {
	switch r.Method {
	case http.MethodGet:
		bookings, err := s.app.ListBookings(r.Context(), p)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeList(w, bookings)
	case http.MethodPost:
		var req app.BookingRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		receipt, err := s.app.CreateBooking(r.Context(), p, req)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		s.audit(r, "api.booking.create", "success", "user_id", p.User.ID, "booking_id", receipt.Booking.ID)
		writeJSON(w, http.StatusCreated, receipt)
	default:
		methodNotAllowed(w)
	}
}

// /bookings/{id}/verify or /bookings/{id}/cancel
func (s *Server) handleBookingAction(w http.ResponseWriter, r *http.Request, p app.Principal) {
	path := strings.TrimPrefix(r.URL.Path, "/bookings/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id, action := parts[0], parts[1]
	if action != "verify" && action != "cancel" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	transition := s.app.VerifyBooking
	if action == "cancel" {
		transition = s.app.CancelBooking
	}
	booking, err := transition(r.Context(), p, id)
	if err != nil {
		s.audit(r, "api.booking."+action, "fail", "user_id", p.User.ID, "booking_id", id, "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.booking."+action, "success", "user_id", p.User.ID, "booking_id", id)
	writeJSON(w, http.StatusOK, booking)
}
