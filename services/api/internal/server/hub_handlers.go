package server

import (
	"net/http"
	"strings"

	"turfhub/pkg/storage"
	"turfhub/pkg/venue"
	"turfhub/services/api/internal/app"
)

// /hubs
func (s *Server) handleHubs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeList(w, s.app.ListHubs(r.Context(), s.principal(r)))
	case http.MethodPost:
		s.authenticated(s.handleSaveHub).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSaveHub(w http.ResponseWriter, r *http.Request, p app.Principal) {
	var form venue.Form
	if err := decodeJSON(r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	hub, err := s.app.SaveHub(r.Context(), p, form)
	if err != nil {
		s.audit(r, "api.hub.save", "fail", "user_id", p.User.ID, "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.hub.save", "success", "user_id", p.User.ID, "hub_id", hub.ID)
	status := http.StatusCreated
	if form.IsEdit() {
		status = http.StatusOK
	}
	writeJSON(w, status, hub)
}

func (s *Server) handleMyHubs(w http.ResponseWriter, r *http.Request, p app.Principal) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	hubs, err := s.app.MyHubs(r.Context(), p)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeList(w, hubs)
}

// /hubs/{id}, /hubs/{id}/quote or /hubs/{id}/images
func (s *Server) handleHubByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/hubs/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "quote":
			s.handleQuote(w, r, id)
		case "images":
			s.authenticated(func(w http.ResponseWriter, r *http.Request, p app.Principal) {
				s.handleHubImage(w, r, p, id)
			}).ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	hub, err := s.app.GetHub(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hub)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request, hubID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	quote, err := s.app.Quote(r.Context(), app.BookingRequest{
		HubID:      hubID,
		SlotID:     q.Get("slotId"),
		CategoryID: q.Get("categoryId"),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleHubImage(w http.ResponseWriter, r *http.Request, p app.Principal, hubID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageBytes+(1<<20))
	if err := r.ParseMultipartForm(storage.MaxImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()
	hub, err := s.app.AddHubImage(r.Context(), p, hubID, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		s.audit(r, "api.hub.image", "fail", "user_id", p.User.ID, "hub_id", hubID, "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.hub.image", "success", "user_id", p.User.ID, "hub_id", hubID)
	writeJSON(w, http.StatusCreated, hub)
}
