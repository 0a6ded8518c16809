package api

import (
	"encoding/json"
	"net/http"

	"github.com/chrislearn/mofa-studio/internal/api/respond"
	"github.com/chrislearn/mofa-studio/internal/model"
)

// maxBodyBytes bounds request bodies; analyses are the largest payload.
const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if model.IsValidationError(err) {
			respond.WriteServiceError(w, err)
			return false
		}
		respond.WriteBadRequest(w, "Invalid JSON")
		return false
	}
	return true
}
