package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrislearn/mofa-studio/internal/model"
)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(model.NewValidationError("x", "bad")))
	assert.Equal(t, http.StatusNotFound, StatusFor(fmt.Errorf("item 3: %w", model.ErrNotFound)))
	assert.Equal(t, http.StatusConflict, StatusFor(model.ErrConflict))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(model.Unavailable("op", errors.New("io"))))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}

func TestWriteServiceError_CarriesField(t *testing.T) {
	w := httptest.NewRecorder()
	WriteServiceError(w, fmt.Errorf("wrap: %w", model.NewValidationError("outcome", "unknown")))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "outcome", body.Field)
	assert.Equal(t, 400, body.Code)
	assert.Contains(t, body.Message, "unknown")
}
