package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("grammar")
	require.NoError(t, err)
	assert.Equal(t, CategoryGrammar, c)

	_, err = ParseCategory("spelling")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "category", ve.Field)
}

func TestOutcomeUnmarshalJSON(t *testing.T) {
	var body struct {
		Outcome Outcome `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"outcome":"neutral"}`), &body))
	assert.Equal(t, OutcomeNeutral, body.Outcome)

	err := json.Unmarshal([]byte(`{"outcome":"maybe"}`), &body)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	err = json.Unmarshal([]byte(`{"outcome":3}`), &body)
	require.Error(t, err)
	assert.False(t, IsValidationError(err))
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, KindVocabulary.IsValid())
	assert.False(t, AnnotationKind("style").IsValid())
	assert.True(t, SeverityHigh.IsValid())
	assert.False(t, Severity("critical").IsValid())
	assert.True(t, SpeakerTutor.IsValid())
	assert.False(t, Speaker("narrator").IsValid())
}

func TestUnavailable(t *testing.T) {
	assert.NoError(t, Unavailable("op", nil))

	err := Unavailable("select items", errors.New("connection reset"))
	assert.True(t, IsStoreUnavailable(err))
	assert.Contains(t, err.Error(), "select items")
	assert.Contains(t, err.Error(), "connection reset")

	for _, sentinel := range []error{ErrNotFound, ErrConflict, NewValidationError("x", "bad")} {
		wrapped := fmt.Errorf("ctx: %w", sentinel)
		assert.Same(t, wrapped, Unavailable("op", wrapped))
	}
}

func TestErrorPredicates(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("item 7: %w", ErrNotFound)))
	assert.True(t, IsConflict(fmt.Errorf("dup: %w", ErrConflict)))
	assert.False(t, IsNotFound(ErrConflict))
	assert.Equal(t, "validation failed for text: required", NewValidationError("text", "required").Error())
}
