package view

import (
	"sync"

	"turfhub/pkg/domain"
)

// Ticket identifies the generation a request was issued in.
type Ticket uint64

// Local is the client's cached hubs and bookings. Command results patch it
// directly; results carrying an old ticket are dropped.
type Local struct {
	mu       sync.Mutex
	gen      Ticket
	hubs     []domain.Hub
	bookings []domain.Booking
}

// Ticket returns the current generation; capture it before issuing a request.
func (l *Local) Ticket() Ticket {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

// Invalidate makes every outstanding ticket stale without clearing data.
func (l *Local) Invalidate() {
	l.mu.Lock()
	l.gen++
	l.mu.Unlock()
}

// Reset clears all cached rows and invalidates outstanding tickets.
func (l *Local) Reset() {
	l.mu.Lock()
	l.gen++
	l.hubs = nil
	l.bookings = nil
	l.mu.Unlock()
}

// ReplaceHubs installs a fetched hub list unless the ticket is stale.
func (l *Local) ReplaceHubs(t Ticket, hubs []domain.Hub) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t != l.gen {
		return false
	}
	l.hubs = append([]domain.Hub(nil), hubs...)
	return true
}

// ReplaceBookings installs a fetched booking list unless the ticket is stale.
func (l *Local) ReplaceBookings(t Ticket, bookings []domain.Booking) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t != l.gen {
		return false
	}
	l.bookings = append([]domain.Booking(nil), bookings...)
	return true
}

// ApplyHub upserts a saved hub.
func (l *Local) ApplyHub(t Ticket, hub domain.Hub) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t != l.gen {
		return false
	}
	for i := range l.hubs {
		if l.hubs[i].ID == hub.ID {
			l.hubs[i] = hub
			return true
		}
	}
	l.hubs = append(l.hubs, hub)
	return true
}

// ApplyBooking upserts a created or re-statused booking.
func (l *Local) ApplyBooking(t Ticket, b domain.Booking) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t != l.gen {
		return false
	}
	for i := range l.bookings {
		if l.bookings[i].ID == b.ID {
			l.bookings[i] = b
			return true
		}
	}
	l.bookings = append([]domain.Booking{b}, l.bookings...)
	return true
}

func (l *Local) Hubs() []domain.Hub {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Hub{}, l.hubs...)
}

func (l *Local) Bookings() []domain.Booking {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Booking{}, l.bookings...)
}

// Router owns the view state and the local cache.
type Router struct {
	mu    sync.Mutex
	state State
	local *Local
}

func NewRouter() *Router {
	return &Router{local: &Local{}}
}

func (r *Router) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Router) Local() *Local { return r.local }

// Dispatch runs an intent. Leaving a view invalidates its outstanding requests;
// losing the session also clears cached rows.
func (r *Router) Dispatch(in Intent) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next, effect, err := Transition(r.state, in)
	if err != nil {
		return r.state, err
	}
	switch {
	case effect.ClearData:
		r.local.Reset()
	case next.View != r.state.View:
		r.local.Invalidate()
	}
	r.state = next
	return next, nil
}
