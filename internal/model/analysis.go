package model

// Finding is a grammar, usage or vocabulary issue reported by the external analyzer.
// Type uses the analyzer's vocabulary (grammar, word_choice, usage, vocabulary, ...).
type Finding struct {
	Type        string    `json:"type"`
	Original    string    `json:"original"`
	Suggested   string    `json:"suggested,omitempty"`
	Description Bilingual `json:"description"`
	Severity    Severity  `json:"severity,omitempty"`
}

// PronunciationFinding is a word the recognizer was not confident about.
type PronunciationFinding struct {
	Word       string  `json:"word"`
	Confidence float64 `json:"confidence"`
}

// AnalysisResult is what the analyzer delivers for one user turn. Either TurnID
// references an existing turn or UserText is set and the turn is appended.
type AnalysisResult struct {
	SessionID           string                 `json:"sessionId"`
	TurnID              *int64                 `json:"turnId,omitempty"`
	UserText            string                 `json:"userText,omitempty"`
	Issues              []Finding              `json:"issues"`
	PronunciationIssues []PronunciationFinding `json:"pronunciationIssues"`
}

// StorageResult reports what one Record call wrote.
type StorageResult struct {
	TurnID                    int64 `json:"turnId"`
	AnnotationsStored         int   `json:"annotationsStored"`
	PracticeEntriesStored     int   `json:"practiceEntriesStored"`
	IssuesStored              int   `json:"issuesStored"`
	PronunciationIssuesStored int   `json:"pronunciationIssuesStored"`
}
