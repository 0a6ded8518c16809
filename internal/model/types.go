package model

import "time"

// Bilingual carries a description in the learner's target language with a translation.
type Bilingual struct {
	Text        string `json:"text"`
	Translation string `json:"translation,omitempty"`
}

// VocabularyItem is a word or phrase with learning metadata.
type VocabularyItem struct {
	ItemID             int64      `json:"itemId"`
	Text               string     `json:"text"`
	Category           Category   `json:"category"`
	Description        Bilingual  `json:"description"`
	Context            string     `json:"context,omitempty"`
	CreationTime       time.Time  `json:"creationTime"`
	LastPickedTime     *time.Time `json:"lastPickedTime,omitempty"`
	NextReviewTime     time.Time  `json:"nextReviewTime"`
	ReviewIntervalDays int        `json:"reviewIntervalDays"`
	DifficultyLevel    int        `json:"difficultyLevel"`
	PickCount          int        `json:"pickCount"`
}

// LearningSession is one practice session.
type LearningSession struct {
	SessionID     string     `json:"sessionId"`
	Topic         *string    `json:"topic,omitempty"`
	TargetItemIDs []int64    `json:"targetItemIds"`
	StartTime     time.Time  `json:"startTime"`
	EndTime       *time.Time `json:"endTime,omitempty"`
	ExchangeCount int        `json:"exchangeCount"`
}

// TurnMetrics are optional delivery measurements of a spoken turn.
type TurnMetrics struct {
	SpeechRateWPM float64 `json:"speechRateWpm"`
	PauseCount    int     `json:"pauseCount"`
}

// ConversationTurn is one utterance in a session. Append-only.
type ConversationTurn struct {
	TurnID       int64        `json:"turnId"`
	SessionID    string       `json:"sessionId"`
	Speaker      Speaker      `json:"speaker"`
	Text         string       `json:"text"`
	AudioRef     *string      `json:"audioRef,omitempty"`
	Metrics      *TurnMetrics `json:"metrics,omitempty"`
	CreationTime time.Time    `json:"creationTime"`
}

// ConversationAnnotation is a flagged issue tied to a turn. Immutable once written.
type ConversationAnnotation struct {
	AnnotationID int64          `json:"annotationId"`
	TurnID       int64          `json:"turnId"`
	Kind         AnnotationKind `json:"kind"`
	Severity     Severity       `json:"severity"`
	Original     string         `json:"original"`
	Suggested    string         `json:"suggested,omitempty"`
	Description  Bilingual      `json:"description"`
	CreationTime time.Time      `json:"creationTime"`
}

// PracticeLogEntry records one exposure of an item within a session.
type PracticeLogEntry struct {
	EntryID     int64     `json:"entryId"`
	ItemID      int64     `json:"itemId"`
	SessionID   string    `json:"sessionId"`
	PracticedAt time.Time `json:"practicedAt"`
	Outcome     Outcome   `json:"outcome"`
}

// SessionSelection is the result of a selection run.
type SessionSelection struct {
	SessionID string           `json:"sessionId"`
	Items     []VocabularyItem `json:"items"`
}

// ListItemsRequest captures filters used when listing vocabulary items.
type ListItemsRequest struct {
	Category Category
	DueOnly  bool
	Now      time.Time
	Limit    int
}

// SessionStats summarises the activity recorded for one session.
type SessionStats struct {
	SessionID         string                 `json:"sessionId"`
	UserTurns         int                    `json:"userTurns"`
	TutorTurns        int                    `json:"tutorTurns"`
	AnnotationsByKind map[AnnotationKind]int `json:"annotationsByKind"`
	OutcomeCounts     map[Outcome]int        `json:"outcomeCounts"`
}
