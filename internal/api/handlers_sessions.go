package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/chrislearn/mofa-studio/internal/api/respond"
	"github.com/chrislearn/mofa-studio/internal/api/validate"
	"github.com/chrislearn/mofa-studio/internal/services"
)

// SessionHandler serves the session lifecycle and conversation history.
type SessionHandler struct {
	svc        *services.SessionService
	dispatcher Dispatcher
	now        func() time.Time
}

// NewSessionHandler wires session routes. Closing a session also drops its
// turn-gate state through d.
func NewSessionHandler(svc *services.SessionService, d Dispatcher, now func() time.Time) *SessionHandler {
	return &SessionHandler{svc: svc, dispatcher: d, now: now}
}

func sessionIDVar(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := mux.Vars(r)["sessionId"]
	if err := validate.SessionID(id); err != nil {
		respond.WriteServiceError(w, err)
		return "", false
	}
	return id, true
}

// ListSessions GET /api/sessions?limit=
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit, err := validate.Limit(r.URL.Query().Get("limit"))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	out, err := h.svc.ListSessions(r.Context(), limit)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"sessions": out, "count": len(out)})
}

// GetSession GET /api/sessions/{sessionId}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDVar(w, r)
	if !ok {
		return
	}
	s, err := h.svc.GetSession(r.Context(), id)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, s)
}

// SetTopic PUT /api/sessions/{sessionId}/topic
func (h *SessionHandler) SetTopic(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDVar(w, r)
	if !ok {
		return
	}
	var req struct {
		Topic string `json:"topic"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Topic(req.Topic); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	if err := h.svc.SetTopic(r.Context(), id, req.Topic); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloseSession POST /api/sessions/{sessionId}/close
func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDVar(w, r)
	if !ok {
		return
	}
	s, err := h.svc.CloseSession(r.Context(), id, h.now())
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	// Queued behind the session's pending events, ahead of anything sent after this reply.
	if err := h.dispatcher.Forget(r.Context(), id); err != nil {
		log.Warn().Err(err).Str("session_id", id).Msg("gate state not released on close")
	}
	respond.WriteJSON(w, http.StatusOK, s)
}

// SessionStats GET /api/sessions/{sessionId}/stats
func (h *SessionHandler) SessionStats(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDVar(w, r)
	if !ok {
		return
	}
	st, err := h.svc.SessionStats(r.Context(), id)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, st)
}

// AppendTurn POST /api/sessions/{sessionId}/turns
func (h *SessionHandler) AppendTurn(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDVar(w, r)
	if !ok {
		return
	}
	var req services.NewTurn
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.MaxLen("text", req.Text, validate.MaxUtteranceLen); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	t, err := h.svc.AppendTurn(r.Context(), id, req, h.now())
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, t)
}

// ListTurns GET /api/sessions/{sessionId}/turns
func (h *SessionHandler) ListTurns(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDVar(w, r)
	if !ok {
		return
	}
	turns, err := h.svc.ListTurns(r.Context(), id)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"turns": turns, "count": len(turns)})
}

// ListAnnotations GET /api/sessions/{sessionId}/annotations
func (h *SessionHandler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDVar(w, r)
	if !ok {
		return
	}
	anns, err := h.svc.ListAnnotations(r.Context(), id)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"annotations": anns, "count": len(anns)})
}
