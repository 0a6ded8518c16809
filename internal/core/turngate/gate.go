// Package turngate implements the per-session turn-taking gate. A generated topic
// never triggers a response by itself: it is buffered until a genuine user
// utterance arrives and is then merged into exactly one outgoing message.
package turngate

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// State of one session's gate.
type State int

const (
	Idle State = iota
	ContextPending
)

func (s State) String() string {
	if s == ContextPending {
		return "context_pending"
	}
	return "idle"
}

// Event is one of ContextArrived, UserUtterance or SessionReset.
type Event interface {
	SessionKey() string
	isEvent()
}

// ContextArrived carries a generated topic and optional target words.
type ContextArrived struct {
	SessionID   string   `json:"sessionId"`
	Topic       string   `json:"topic"`
	TargetWords []string `json:"targetWords,omitempty"`
}

// UserUtterance carries recognized speech text.
type UserUtterance struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
}

// SessionReset discards pending context and the first-turn flag.
type SessionReset struct {
	SessionID string `json:"sessionId"`
}

func (e ContextArrived) SessionKey() string { return e.SessionID }
func (e UserUtterance) SessionKey() string  { return e.SessionID }
func (e SessionReset) SessionKey() string   { return e.SessionID }

func (ContextArrived) isEvent() {}
func (UserUtterance) isEvent()  {}
func (SessionReset) isEvent()   {}

// MergedMessage is the only payload the gate emits.
type MergedMessage struct {
	UserText         string   `json:"userText"`
	SessionID        string   `json:"sessionId"`
	Topic            *string  `json:"topic"`
	TargetWords      []string `json:"targetWords"`
	IsFirstInSession bool     `json:"isFirstInSession"`
}

type pendingContext struct {
	topic string
	words []string
}

type session struct {
	mu       sync.Mutex
	pending  *pendingContext
	answered bool
}

// Gate holds per-session state. Sessions are independent: each has its own lock
// and the map lock is only held to find or create an entry.
type Gate struct {
	mu       sync.RWMutex
	sessions map[string]*session
	log      zerolog.Logger
}

// New returns an empty gate.
func New(log zerolog.Logger) *Gate {
	return &Gate{sessions: make(map[string]*session), log: log}
}

func (g *Gate) get(id string) *session {
	g.mu.RLock()
	s, ok := g.sessions[id]
	g.mu.RUnlock()
	if ok {
		return s
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok = g.sessions[id]; !ok {
		s = &session{}
		g.sessions[id] = s
	}
	return s
}

// Handle applies ev and returns the merged message when one is emitted.
func (g *Gate) Handle(ev Event) (*MergedMessage, bool) {
	switch e := ev.(type) {
	case ContextArrived:
		g.OnContextArrived(e.SessionID, e.Topic, e.TargetWords)
	case UserUtterance:
		return g.OnUserUtterance(e.SessionID, e.Text)
	case SessionReset:
		g.OnSessionReset(e.SessionID)
	}
	return nil, false
}

// OnContextArrived stores the context, replacing any context still pending.
func (g *Gate) OnContextArrived(sessionID, topic string, targetWords []string) {
	s := g.get(sessionID)
	s.mu.Lock()
	replaced := s.pending != nil
	s.pending = &pendingContext{topic: topic, words: append([]string(nil), targetWords...)}
	s.mu.Unlock()

	g.log.Debug().
		Str("session_id", sessionID).
		Bool("replaced", replaced).
		Int("target_words", len(targetWords)).
		Msg("context buffered")
}

// OnUserUtterance emits a merged message for non-blank text and consumes the
// pending context. Blank text is ignored.
func (g *Gate) OnUserUtterance(sessionID, text string) (*MergedMessage, bool) {
	if strings.TrimSpace(text) == "" {
		g.log.Debug().Str("session_id", sessionID).Msg("ignoring empty utterance")
		return nil, false
	}

	s := g.get(sessionID)
	s.mu.Lock()
	msg := &MergedMessage{
		UserText:         text,
		SessionID:        sessionID,
		TargetWords:      []string{},
		IsFirstInSession: !s.answered,
	}
	if s.pending != nil {
		topic := s.pending.topic
		msg.Topic = &topic
		if len(s.pending.words) > 0 {
			msg.TargetWords = s.pending.words
		}
		s.pending = nil
	}
	s.answered = true
	s.mu.Unlock()

	return msg, true
}

// OnSessionReset returns the session to Idle as if it had just started.
func (g *Gate) OnSessionReset(sessionID string) {
	s := g.get(sessionID)
	s.mu.Lock()
	s.pending = nil
	s.answered = false
	s.mu.Unlock()
	g.log.Debug().Str("session_id", sessionID).Msg("session reset")
}

// State reports the current state of a session. Unknown sessions are Idle.
func (g *Gate) State(sessionID string) State {
	g.mu.RLock()
	s, ok := g.sessions[sessionID]
	g.mu.RUnlock()
	if !ok {
		return Idle
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		return ContextPending
	}
	return Idle
}

// Forget drops all state for a closed session.
func (g *Gate) Forget(sessionID string) {
	g.mu.Lock()
	delete(g.sessions, sessionID)
	g.mu.Unlock()
}

// Len returns the number of tracked sessions.
func (g *Gate) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sessions)
}
