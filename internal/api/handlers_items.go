package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/chrislearn/mofa-studio/internal/api/respond"
	"github.com/chrislearn/mofa-studio/internal/api/validate"
	"github.com/chrislearn/mofa-studio/internal/model"
	"github.com/chrislearn/mofa-studio/internal/services"
)

// ItemHandler is a thin HTTP transport over ItemService.
type ItemHandler struct {
	svc *services.ItemService
	now func() time.Time
}

func NewItemHandler(svc *services.ItemService, now func() time.Time) *ItemHandler {
	return &ItemHandler{svc: svc, now: now}
}

func itemIDVar(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := validate.ItemID(mux.Vars(r)["itemId"])
	if err != nil {
		respond.WriteServiceError(w, err)
		return 0, false
	}
	return id, true
}

// CreateItem POST /api/items
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req services.NewItem
	if !decodeJSON(w, r, &req) {
		return
	}
	it, err := h.svc.CreateItem(r.Context(), req, h.now())
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, it)
}

// ImportItems POST /api/items/import
func (h *ItemHandler) ImportItems(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []services.NewItem `json:"items"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.ImportItems(r.Context(), req.Items, h.now())
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, res)
}

// ListItems GET /api/items?category=&due=&limit=
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := model.ListItemsRequest{Now: h.now()}
	if c := q.Get("category"); c != "" {
		cat, err := model.ParseCategory(c)
		if err != nil {
			respond.WriteServiceError(w, err)
			return
		}
		req.Category = cat
	}
	due, err := validate.Bool("due", q.Get("due"))
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	req.DueOnly = due
	if req.Limit, err = validate.Limit(q.Get("limit")); err != nil {
		respond.WriteServiceError(w, err)
		return
	}

	items, err := h.svc.ListItems(r.Context(), req)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items, "count": len(items)})
}

// GetItem GET /api/items/{itemId}
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemIDVar(w, r)
	if !ok {
		return
	}
	it, err := h.svc.GetItem(r.Context(), id)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, it)
}

// ItemHistory GET /api/items/{itemId}/history
func (h *ItemHandler) ItemHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := itemIDVar(w, r)
	if !ok {
		return
	}
	entries, err := h.svc.ItemHistory(r.Context(), id)
	if err != nil {
		respond.WriteServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"entries": entries, "count": len(entries)})
}
