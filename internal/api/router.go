package api

import (
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/chrislearn/mofa-studio/internal/api/recovery"
	"github.com/chrislearn/mofa-studio/internal/services"
)

// Deps are the services the router exposes.
type Deps struct {
	Scheduler  *services.SchedulerService
	Items      *services.ItemService
	Sessions   *services.SessionService
	Recorder   *services.RecorderService
	Dispatcher Dispatcher
	Health     HealthSource
	Clock      func() time.Time
	Log        zerolog.Logger
}

// NewRouter wires every HTTP route to its handler.
func NewRouter(d Deps) *mux.Router {
	now := d.Clock
	if now == nil {
		now = time.Now
	}
	root := mux.NewRouter()
	root.Use(recovery.Middleware(d.Log))

	// Scheduling
	sel := NewSelectionHandler(d.Scheduler, now)
	root.HandleFunc("/api/selections", sel.Select).Methods("POST")
	root.HandleFunc("/api/items/{itemId}/outcomes", sel.RecordOutcome).Methods("POST")

	// Items
	items := NewItemHandler(d.Items, now)
	root.HandleFunc("/api/items", items.CreateItem).Methods("POST")
	root.HandleFunc("/api/items", items.ListItems).Methods("GET")
	root.HandleFunc("/api/items/import", items.ImportItems).Methods("POST")
	root.HandleFunc("/api/items/{itemId}", items.GetItem).Methods("GET")
	root.HandleFunc("/api/items/{itemId}/history", items.ItemHistory).Methods("GET")

	// Sessions
	sessions := NewSessionHandler(d.Sessions, d.Dispatcher, now)
	root.HandleFunc("/api/sessions", sessions.ListSessions).Methods("GET")
	root.HandleFunc("/api/sessions/{sessionId}", sessions.GetSession).Methods("GET")
	root.HandleFunc("/api/sessions/{sessionId}/topic", sessions.SetTopic).Methods("PUT")
	root.HandleFunc("/api/sessions/{sessionId}/close", sessions.CloseSession).Methods("POST")
	root.HandleFunc("/api/sessions/{sessionId}/stats", sessions.SessionStats).Methods("GET")
	root.HandleFunc("/api/sessions/{sessionId}/turns", sessions.AppendTurn).Methods("POST")
	root.HandleFunc("/api/sessions/{sessionId}/turns", sessions.ListTurns).Methods("GET")
	root.HandleFunc("/api/sessions/{sessionId}/annotations", sessions.ListAnnotations).Methods("GET")

	// Turn gate and analyses
	conv := NewConversationHandler(d.Dispatcher, d.Recorder, now)
	root.HandleFunc("/api/sessions/{sessionId}/context", conv.PostContext).Methods("POST")
	root.HandleFunc("/api/sessions/{sessionId}/utterances", conv.PostUtterance).Methods("POST")
	root.HandleFunc("/api/sessions/{sessionId}/reset", conv.Reset).Methods("POST")
	root.HandleFunc("/api/analyses", conv.SubmitAnalysis).Methods("POST")

	// Health and metrics
	root.HandleFunc("/api/health", NewHealthHandler(d.Health).CheckHealth).Methods("GET")
	root.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return root
}
