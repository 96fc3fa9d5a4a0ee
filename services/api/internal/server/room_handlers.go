package server

import (
	"net/http"
	"strconv"
	"strings"

	"turfhub/services/api/internal/app"
)

type createRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type joinRoomRequest struct {
	Code string `json:"code"`
}

type voteRequest struct {
	OptionID string `json:"optionId"`
}

type assistantRequest struct {
	Question string `json:"question"`
}

// /rooms
func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rooms, err := s.app.ListRooms(r.Context(), s.principal(r))
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeList(w, rooms)
	case http.MethodPost:
		s.authenticated(s.handleCreateRoom).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request, p app.Principal) {
	var req createRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	room, err := s.app.CreateSquad(r.Context(), p, req.Name, req.Description)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request, p app.Principal) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.joinLimiter, "too many join attempts") {
		s.audit(r, "api.room.join", "rate_limited", "user_id", p.User.ID)
		return
	}
	var req joinRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	room, err := s.app.JoinSquad(r.Context(), p, req.Code)
	if err != nil {
		s.audit(r, "api.room.join", "fail", "user_id", p.User.ID, "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.room.join", "success", "user_id", p.User.ID, "room_id", room.ID)
	writeJSON(w, http.StatusOK, room)
}

// /rooms/{id}/messages, /rooms/{id}/messages/{msgId}/vote or /rooms/{id}/stream
func (s *Server) handleRoomByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/rooms/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	roomID := parts[0]
	switch {
	case len(parts) == 2 && parts[1] == "messages":
		s.handleMessages(w, r, roomID)
	case len(parts) == 2 && parts[1] == "stream":
		s.handleRoomStream(w, r, roomID)
	case len(parts) == 4 && parts[1] == "messages" && parts[2] != "" && parts[3] == "vote":
		msgID := parts[2]
		s.authenticated(func(w http.ResponseWriter, r *http.Request, p app.Principal) {
			s.handleVote(w, r, p, roomID, msgID)
		}).ServeHTTP(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request, roomID string) {
	switch r.Method {
	case http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		msgs, err := s.app.ListMessages(r.Context(), s.principal(r), roomID, limit)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeList(w, msgs)
	case http.MethodPost:
		s.authenticated(func(w http.ResponseWriter, r *http.Request, p app.Principal) {
			var req app.MessageInput
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			msg, err := s.app.SendMessage(r.Context(), p, roomID, req)
			if err != nil {
				writeAppError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, msg)
		}).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request, p app.Principal, roomID, msgID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req voteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	msg, err := s.app.Vote(r.Context(), p, roomID, msgID, req.OptionID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleRoomStream(w http.ResponseWriter, r *http.Request, roomID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	sub, err := s.app.Subscribe(r.Context(), s.principal(r), roomID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	streamEvents(w, r, sub)
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req assistantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": s.app.Ask(r.Context(), req.Question)})
}
