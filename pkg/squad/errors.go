package squad

import "errors"

var (
	// ErrMalformedCode indicates a join code that is not exactly four digits.
	ErrMalformedCode = errors.New("join code must be 4 digits")
	// ErrRoomNotFound indicates no squad uses the join code.
	ErrRoomNotFound = errors.New("squad not found")
	// ErrInvalidTransition indicates an action that the current session state does not allow.
	ErrInvalidTransition = errors.New("invalid squad session transition")
	ErrEmptyName         = errors.New("squad name required")
	// ErrCodesExhausted indicates every generated candidate was already taken.
	ErrCodesExhausted = errors.New("no free join code")
	ErrInvalidPoll    = errors.New("poll needs a question and at least two options")
	ErrUnknownOption  = errors.New("unknown poll option")
)
