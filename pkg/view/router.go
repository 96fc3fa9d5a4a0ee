// Package view holds the client view state machine. Every view change goes
// through Transition with a named intent; nothing assigns State.View directly.
package view

import (
	"errors"

	"turfhub/pkg/domain"
	"turfhub/pkg/session"
)

type View int

const (
	Landing View = iota
	Auth
	UserDashboard
	OwnerDashboard
	HubDetail
	Booking
	Payment
	MyBookings
	Community
	Chat
	VenueEditor
	Assistant
)

var viewNames = map[View]string{
	Landing:        "landing",
	Auth:           "auth",
	UserDashboard:  "user-dashboard",
	OwnerDashboard: "owner-dashboard",
	HubDetail:      "hub-detail",
	Booking:        "booking",
	Payment:        "payment",
	MyBookings:     "my-bookings",
	Community:      "community",
	Chat:           "chat",
	VenueEditor:    "venue-editor",
	Assistant:      "assistant",
}

func (v View) String() string {
	if name, ok := viewNames[v]; ok {
		return name
	}
	return "unknown"
}

// Public views do not depend on an identity.
func (v View) Public() bool { return v == Landing || v == Auth }

var (
	ErrNotAllowed       = errors.New("view not allowed from here")
	ErrSignInRequired   = errors.New("sign in required")
	ErrOwnerOnly        = errors.New("owner access required")
	ErrMissingReference = errors.New("missing reference")
)

// State is the full router state. The zero value is the landing page.
type State struct {
	View      View             `json:"view"`
	Identity  session.Identity `json:"identity"`
	Portal    domain.Role      `json:"portal,omitempty"`
	HubID     string           `json:"hubId,omitempty"`
	SlotID    string           `json:"slotId,omitempty"`
	BookingID string           `json:"bookingId,omitempty"`
	RoomID    string           `json:"roomId,omitempty"`
}

func (s State) signedIn() bool { return s.Identity.UserID != "" }
func (s State) browsing() bool { return s.signedIn() || s.Identity.Role == domain.RoleGuest }

// Effect tells the state owner what to do besides rendering the new view.
type Effect struct {
	ClearData bool
}

// Intent is a named request to change views.
type Intent interface{ intent() }

type (
	SessionStarted   struct{ Identity session.Identity }
	SessionEnded     struct{}
	BrowseAsGuest    struct{}
	RequestAuth      struct{ Portal domain.Role }
	RequestHubDetail struct{ HubID string }
	RequestBooking   struct{ SlotID string }
	RequestPayment   struct{ BookingID string }
	OpenMyBookings   struct{}
	OpenCommunity    struct{}
	OpenChat         struct{ RoomID string }
	OpenVenueEditor  struct{ HubID string }
	OpenAssistant    struct{}
	Back             struct{}
)

func (SessionStarted) intent()   {}
func (SessionEnded) intent()     {}
func (BrowseAsGuest) intent()    {}
func (RequestAuth) intent()      {}
func (RequestHubDetail) intent() {}
func (RequestBooking) intent()   {}
func (RequestPayment) intent()   {}
func (OpenMyBookings) intent()   {}
func (OpenCommunity) intent()    {}
func (OpenChat) intent()         {}
func (OpenVenueEditor) intent()  {}
func (OpenAssistant) intent()    {}
func (Back) intent()             {}

// Dashboard is the home view for an identity.
func Dashboard(id session.Identity) View {
	if id.IsOwner() {
		return OwnerDashboard
	}
	return UserDashboard
}

// Transition applies one intent. On error the returned state equals s.
func Transition(s State, in Intent) (State, Effect, error) {
	next := s
	switch in := in.(type) {
	case SessionStarted:
		next.Identity = in.Identity
		// Only redirect from landing/auth so a background refresh never yanks the user out of a view.
		if s.View.Public() {
			next.View = Dashboard(in.Identity)
		}
		return next, Effect{}, nil

	case SessionEnded:
		if !s.signedIn() {
			return s, Effect{}, nil
		}
		if s.View.Public() {
			next.Identity = session.Identity{}
			return next, Effect{}, nil
		}
		return State{View: Landing}, Effect{ClearData: true}, nil

	case BrowseAsGuest:
		if !s.View.Public() {
			return s, Effect{}, ErrNotAllowed
		}
		return State{View: UserDashboard, Identity: session.Guest()}, Effect{}, nil

	case RequestAuth:
		if s.signedIn() {
			return s, Effect{}, ErrNotAllowed
		}
		portal := in.Portal
		if portal != domain.RoleOwner {
			portal = domain.RoleUser
		}
		return State{View: Auth, Portal: portal}, Effect{}, nil

	case RequestHubDetail:
		if !s.browsing() {
			return s, Effect{}, ErrSignInRequired
		}
		if in.HubID == "" {
			return s, Effect{}, ErrMissingReference
		}
		next.View, next.HubID, next.SlotID, next.BookingID = HubDetail, in.HubID, "", ""
		return next, Effect{}, nil

	case RequestBooking:
		if s.View != HubDetail {
			return s, Effect{}, ErrNotAllowed
		}
		if !s.signedIn() {
			return s, Effect{}, ErrSignInRequired
		}
		if in.SlotID == "" {
			return s, Effect{}, ErrMissingReference
		}
		next.View, next.SlotID = Booking, in.SlotID
		return next, Effect{}, nil

	case RequestPayment:
		if s.View != Booking {
			return s, Effect{}, ErrNotAllowed
		}
		if in.BookingID == "" {
			return s, Effect{}, ErrMissingReference
		}
		next.View, next.BookingID = Payment, in.BookingID
		return next, Effect{}, nil

	case OpenMyBookings:
		if !s.signedIn() {
			return s, Effect{}, ErrSignInRequired
		}
		next.View = MyBookings
		return next, Effect{}, nil

	case OpenCommunity:
		if !s.browsing() {
			return s, Effect{}, ErrSignInRequired
		}
		next.View, next.RoomID = Community, ""
		return next, Effect{}, nil

	case OpenChat:
		if s.View != Community {
			return s, Effect{}, ErrNotAllowed
		}
		if in.RoomID == "" {
			return s, Effect{}, ErrMissingReference
		}
		next.View, next.RoomID = Chat, in.RoomID
		return next, Effect{}, nil

	case OpenVenueEditor:
		if !s.Identity.IsOwner() {
			return s, Effect{}, ErrOwnerOnly
		}
		next.View, next.HubID = VenueEditor, in.HubID
		return next, Effect{}, nil

	case OpenAssistant:
		if !s.browsing() {
			return s, Effect{}, ErrSignInRequired
		}
		next.View = Assistant
		return next, Effect{}, nil

	case Back:
		return back(s), Effect{}, nil
	}
	return s, Effect{}, ErrNotAllowed
}

func back(s State) State {
	next := s
	switch s.View {
	case Landing:
		return s
	case Auth:
		return State{View: Landing}
	case Chat:
		next.View, next.RoomID = Community, ""
	case Booking:
		next.View, next.SlotID = HubDetail, ""
	case Payment, HubDetail, MyBookings, Community, VenueEditor, Assistant:
		next = State{View: Dashboard(s.Identity), Identity: s.Identity}
	}
	return next
}
