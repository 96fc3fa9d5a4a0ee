package server

import (
	"errors"
	"net/http"

	"turfhub/internal/util"
	"turfhub/pkg/auth"
	"turfhub/pkg/fee"
	"turfhub/pkg/session"
	"turfhub/pkg/squad"
	"turfhub/pkg/storage"
	"turfhub/pkg/venue"
	"turfhub/services/api/internal/app"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{app.ErrEmailRequired, http.StatusBadRequest},
	{app.ErrEmailAndPasswordRequired, http.StatusBadRequest},
	{app.ErrInvalidRole, http.StatusBadRequest},
	{app.ErrInvalidVerification, http.StatusBadRequest},
	{app.ErrRefreshTokenRequired, http.StatusBadRequest},
	{auth.ErrPasswordTooShort, http.StatusBadRequest},
	{auth.ErrPasswordTooLong, http.StatusBadRequest},
	{auth.ErrPasswordWeak, http.StatusBadRequest},
	{venue.ErrMissingName, http.StatusBadRequest},
	{venue.ErrMissingAddress, http.StatusBadRequest},
	{venue.ErrMissingUPI, http.StatusBadRequest},
	{fee.ErrNoSlotSelected, http.StatusBadRequest},
	{app.ErrCategoryRequired, http.StatusBadRequest},
	{app.ErrInvalidDate, http.StatusBadRequest},
	{app.ErrEmptyMessage, http.StatusBadRequest},
	{app.ErrNotAPoll, http.StatusBadRequest},
	{squad.ErrMalformedCode, http.StatusBadRequest},
	{squad.ErrEmptyName, http.StatusBadRequest},
	{squad.ErrInvalidPoll, http.StatusBadRequest},
	{squad.ErrUnknownOption, http.StatusBadRequest},
	{storage.ErrUnsupportedImage, http.StatusBadRequest},

	{app.ErrInvalidCredentials, http.StatusUnauthorized},
	{app.ErrInvalidRefreshToken, http.StatusUnauthorized},
	{app.ErrSignInRequired, http.StatusUnauthorized},

	{app.ErrEmailNotVerified, http.StatusForbidden},
	{session.ErrRoleMismatch, http.StatusForbidden},
	{app.ErrForbidden, http.StatusForbidden},
	{app.ErrNotMember, http.StatusForbidden},

	{app.ErrHubNotFound, http.StatusNotFound},
	{app.ErrSlotNotFound, http.StatusNotFound},
	{app.ErrBookingNotFound, http.StatusNotFound},
	{app.ErrRoomNotFound, http.StatusNotFound},
	{app.ErrMessageNotFound, http.StatusNotFound},
	{squad.ErrRoomNotFound, http.StatusNotFound},

	{app.ErrEmailTaken, http.StatusConflict},
	{app.ErrSlotUnavailable, http.StatusConflict},
	{app.ErrHubSoldOut, http.StatusConflict},
	{app.ErrBookingClosed, http.StatusConflict},

	{storage.ErrImageTooLarge, http.StatusRequestEntityTooLarge},
	{app.ErrImagesDisabled, http.StatusServiceUnavailable},
	{squad.ErrCodesExhausted, http.StatusServiceUnavailable},
}

// displayMessages replaces sentinel text shown on the sign-in form.
var displayMessages = map[error]string{
	app.ErrInvalidCredentials: "Incorrect email address or password",
	app.ErrEmailNotVerified:   "Please verify your email before signing in",
}

// writeAppError maps application errors to a status and the sentinel's
// message. Unknown errors are logged and reported as 500 without detail.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range errorStatus {
		if !errors.Is(err, e.err) {
			continue
		}
		msg := e.err.Error()
		if display, ok := displayMessages[e.err]; ok {
			msg = display
		}
		if e.err == session.ErrRoleMismatch {
			// carries the portal the account belongs to
			msg = err.Error()
		}
		writeError(w, e.status, msg)
		return
	}
	util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "method", r.Method, "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
