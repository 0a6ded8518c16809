package api

import (
	"context"
	"net/http"
	"time"

	"github.com/chrislearn/mofa-studio/internal/api/respond"
	"github.com/chrislearn/mofa-studio/internal/api/validate"
	"github.com/chrislearn/mofa-studio/internal/core/turngate"
	"github.com/chrislearn/mofa-studio/internal/model"
	"github.com/chrislearn/mofa-studio/internal/pipeline"
	"github.com/chrislearn/mofa-studio/internal/services"
)

// Dispatcher is the subset of pipeline.Dispatcher the HTTP layer drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev turngate.Event) (*turngate.MergedMessage, bool, error)
	SubmitAnalysis(ctx context.Context, res *model.AnalysisResult) error
	Forget(ctx context.Context, sessionID string) error
}

var _ Dispatcher = (*pipeline.Dispatcher)(nil)

// ConversationHandler feeds gate events and analysis results into the pipeline.
type ConversationHandler struct {
	dispatcher Dispatcher
	recorder   *services.RecorderService
	now        func() time.Time
}

func NewConversationHandler(d Dispatcher, rec *services.RecorderService, now func() time.Time) *ConversationHandler {
	return &ConversationHandler{dispatcher: d, recorder: rec, now: now}
}

// PostContext POST /api/sessions/{sessionId}/context
func (h *ConversationHandler) PostContext(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDVar(w, r)
	if !ok {
		return
	}
	var req struct {
		Topic       string   `json:"topic"`
		TargetWords []string `json:"targetWords"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Topic(req.Topic); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	if err := validate.TargetWords(req.TargetWords); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	ev := turngate.ContextArrived{SessionID: id, Topic: req.Topic, TargetWords: req.TargetWords}
	if _, _, err := h.dispatcher.Dispatch(r.Context(), ev); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// PostUtterance POST /api/sessions/{sessionId}/utterances
// Returns 200 with the merged message, or 204 when the utterance was ignored.
func (h *ConversationHandler) PostUtterance(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDVar(w, r)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.MaxLen("text", req.Text, validate.MaxUtteranceLen); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	msg, emitted, err := h.dispatcher.Dispatch(r.Context(), turngate.UserUtterance{SessionID: id, Text: req.Text})
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	if !emitted {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respond.WriteJSON(w, http.StatusOK, msg)
}

// Reset POST /api/sessions/{sessionId}/reset
func (h *ConversationHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDVar(w, r)
	if !ok {
		return
	}
	if _, _, err := h.dispatcher.Dispatch(r.Context(), turngate.SessionReset{SessionID: id}); err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitAnalysis POST /api/analyses[?async=true]
func (h *ConversationHandler) SubmitAnalysis(w http.ResponseWriter, r *http.Request) {
	async, err := validate.Bool("async", r.URL.Query().Get("async"))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	var res model.AnalysisResult
	if !decodeJSON(w, r, &res) {
		return
	}
	if async {
		if err := h.dispatcher.SubmitAnalysis(r.Context(), &res); err != nil {
			respond.WriteServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}
	out, err := h.recorder.Record(r.Context(), &res, h.now())
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}
