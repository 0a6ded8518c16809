package model

import (
	"encoding/json"
	"fmt"
)

// Category classifies why a vocabulary item is being tracked.
type Category string

const (
	CategoryPronunciation Category = "pronunciation"
	CategoryGrammar       Category = "grammar"
	CategoryUsage         Category = "usage"
	CategoryUnfamiliar    Category = "unfamiliar"
)

func (c Category) String() string { return string(c) }

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	switch c {
	case CategoryPronunciation, CategoryGrammar, CategoryUsage, CategoryUnfamiliar:
		return true
	}
	return false
}

// ParseCategory converts a string into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return "", NewValidationError("category", fmt.Sprintf("unknown category %q", s))
	}
	return c, nil
}

// Outcome is the result classification of one practice exposure.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeNeutral Outcome = "neutral"
)

func (o Outcome) String() string { return string(o) }

func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailure, OutcomeNeutral:
		return true
	}
	return false
}

// ParseOutcome converts a string into an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(s)
	if !o.IsValid() {
		return "", NewValidationError("outcome", fmt.Sprintf("unknown outcome %q", s))
	}
	return o, nil
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOutcome(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// AnnotationKind is the flavour of a flagged issue on a turn.
type AnnotationKind string

const (
	KindGrammar       AnnotationKind = "grammar"
	KindPronunciation AnnotationKind = "pronunciation"
	KindUsage         AnnotationKind = "usage"
	KindVocabulary    AnnotationKind = "vocabulary"
)

func (k AnnotationKind) IsValid() bool {
	switch k {
	case KindGrammar, KindPronunciation, KindUsage, KindVocabulary:
		return true
	}
	return false
}

// Severity of an annotation.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Speaker is the role that produced a conversation turn.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerTutor Speaker = "tutor"
)

func (s Speaker) IsValid() bool {
	return s == SpeakerUser || s == SpeakerTutor
}
