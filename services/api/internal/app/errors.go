package app

import "errors"

var (
	// ErrInvalidCredentials must not reveal whether the email exists.
	ErrInvalidCredentials = errors.New("incorrect email address or password")
	ErrEmailNotVerified   = errors.New("email address not verified")

	ErrEmailRequired            = errors.New("email required")
	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrEmailTaken               = errors.New("email already registered")
	ErrInvalidRole              = errors.New("role must be user or owner")
	ErrInvalidVerification      = errors.New("verification link is invalid or expired")
	ErrRefreshTokenRequired     = errors.New("refresh token required")
	ErrInvalidRefreshToken      = errors.New("invalid refresh token")

	ErrSignInRequired = errors.New("sign in required")
	ErrForbidden      = errors.New("forbidden")

	ErrHubNotFound      = errors.New("venue not found")
	ErrSlotNotFound     = errors.New("slot not found")
	ErrCategoryRequired = errors.New("choose a category for this slot")
	ErrInvalidDate      = errors.New("date must be YYYY-MM-DD")
	ErrSlotUnavailable  = errors.New("slot is not available")
	ErrHubSoldOut       = errors.New("venue is sold out")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrBookingClosed    = errors.New("booking is no longer pending")

	ErrRoomNotFound    = errors.New("room not found")
	ErrNotMember       = errors.New("join the squad first")
	ErrMessageNotFound = errors.New("message not found")
	ErrEmptyMessage    = errors.New("message text required")
	ErrNotAPoll        = errors.New("message is not a poll")

	ErrImagesDisabled = errors.New("image uploads are not configured")
)
