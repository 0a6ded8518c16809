// Package validate parses and checks request parameters, reporting failures as
// model.ValidationError so handlers map them to 400.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/chrislearn/mofa-studio/internal/model"
)

// sessionIDRx accepts generated UUIDs and the opaque keys the voice front end uses.
var sessionIDRx = regexp.MustCompile(`^[A-Za-z0-9_.:\-]{1,128}$`)

const (
	MaxTopicLen     = 500
	MaxUtteranceLen = 4000
	DefaultLimit    = 50
	MaxLimit        = 500
)

func SessionID(v string) error {
	if v == "" {
		return model.NewValidationError("sessionId", "is required")
	}
	if !sessionIDRx.MatchString(v) {
		return model.NewValidationError("sessionId", "must match "+sessionIDRx.String())
	}
	return nil
}

// ItemID parses a positive item id path parameter.
func ItemID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError("itemId", "must be a positive integer")
	}
	return id, nil
}

// Limit parses an optional limit query parameter.
func Limit(raw string) (int, error) {
	if raw == "" {
		return DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, model.NewValidationError("limit", "must be a positive integer")
	}
	if n > MaxLimit {
		n = MaxLimit
	}
	return n, nil
}

// Bool parses an optional boolean query parameter.
func Bool(field, raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, model.NewValidationError(field, "must be a boolean")
	}
	return b, nil
}

func MaxLen(field, v string, limit int) error {
	if len(v) > limit {
		return model.NewValidationError(field, fmt.Sprintf("exceeds %d characters", limit))
	}
	return nil
}

// Topic requires a non-blank topic within MaxTopicLen.
func Topic(v string) error {
	if strings.TrimSpace(v) == "" {
		return model.NewValidationError("topic", "is required")
	}
	return MaxLen("topic", v, MaxTopicLen)
}

// TargetWords rejects blank entries.
func TargetWords(words []string) error {
	for i, w := range words {
		if strings.TrimSpace(w) == "" {
			return model.NewValidationError(fmt.Sprintf("targetWords[%d]", i), "must not be empty")
		}
	}
	return nil
}
