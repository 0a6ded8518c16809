package api

import (
	"net/http"
	"time"

	"github.com/chrislearn/mofa-studio/internal/api/respond"
	"github.com/chrislearn/mofa-studio/internal/model"
	"github.com/chrislearn/mofa-studio/internal/services"
)

// SelectionHandler exposes session selection and outcome recording.
type SelectionHandler struct {
	svc *services.SchedulerService
	now func() time.Time
}

func NewSelectionHandler(svc *services.SchedulerService, now func() time.Time) *SelectionHandler {
	return &SelectionHandler{svc: svc, now: now}
}

// Select POST /api/selections
func (h *SelectionHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MinCount int `json:"minCount"`
		MaxCount int `json:"maxCount"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	sel, err := h.svc.Select(r.Context(), h.now(), req.MinCount, req.MaxCount)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, sel)
}

// RecordOutcome POST /api/items/{itemId}/outcomes
func (h *SelectionHandler) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemIDVar(w, r)
	if !ok {
		return
	}
	var req struct {
		SessionID string        `json:"sessionId"`
		Outcome   model.Outcome `json:"outcome"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	it, err := h.svc.RecordOutcome(r.Context(), itemID, req.SessionID, req.Outcome, h.now())
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, it)
}
