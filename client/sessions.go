package client

import (
	"context"
	"net/http"
	"strconv"

	"github.com/chrislearn/mofa-studio/internal/core/turngate"
	"github.com/chrislearn/mofa-studio/internal/model"
)

func (c *Client) GetSession(ctx context.Context, sessionID string) (*model.LearningSession, error) {
	var out model.LearningSession
	if _, err := c.do(ctx, "get session", http.MethodGet, sessionPath(sessionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSessions returns the most recent sessions; limit <= 0 uses the server default.
func (c *Client) ListSessions(ctx context.Context, limit int) ([]model.LearningSession, error) {
	path := "/api/sessions"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Sessions []model.LearningSession `json:"sessions"`
	}
	if _, err := c.do(ctx, "list sessions", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (c *Client) SetTopic(ctx context.Context, sessionID, topic string) error {
	_, err := c.do(ctx, "set topic", http.MethodPut, sessionPath(sessionID)+"/topic", map[string]string{"topic": topic}, nil)
	return err
}

// CloseSession ends the session; closing twice keeps the first end time.
func (c *Client) CloseSession(ctx context.Context, sessionID string) (*model.LearningSession, error) {
	var out model.LearningSession
	if _, err := c.do(ctx, "close session", http.MethodPost, sessionPath(sessionID)+"/close", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SessionStats(ctx context.Context, sessionID string) (*model.SessionStats, error) {
	var out model.SessionStats
	if _, err := c.do(ctx, "session stats", http.MethodGet, sessionPath(sessionID)+"/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AppendTurn(ctx context.Context, sessionID string, in NewTurn) (*model.ConversationTurn, error) {
	var out model.ConversationTurn
	if _, err := c.do(ctx, "append turn", http.MethodPost, sessionPath(sessionID)+"/turns", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListTurns(ctx context.Context, sessionID string) ([]model.ConversationTurn, error) {
	var out struct {
		Turns []model.ConversationTurn `json:"turns"`
	}
	if _, err := c.do(ctx, "list turns", http.MethodGet, sessionPath(sessionID)+"/turns", nil, &out); err != nil {
		return nil, err
	}
	return out.Turns, nil
}

func (c *Client) ListAnnotations(ctx context.Context, sessionID string) ([]model.ConversationAnnotation, error) {
	var out struct {
		Annotations []model.ConversationAnnotation `json:"annotations"`
	}
	if _, err := c.do(ctx, "list annotations", http.MethodGet, sessionPath(sessionID)+"/annotations", nil, &out); err != nil {
		return nil, err
	}
	return out.Annotations, nil
}

// PostContext buffers a generated topic for the session's next utterance.
func (c *Client) PostContext(ctx context.Context, sessionID, topic string, targetWords []string) error {
	body := map[string]interface{}{"topic": topic, "targetWords": targetWords}
	_, err := c.do(ctx, "post context", http.MethodPost, sessionPath(sessionID)+"/context", body, nil)
	return err
}

// PostUtterance forwards recognized speech. It reports false when the gate
// ignored the utterance.
func (c *Client) PostUtterance(ctx context.Context, sessionID, text string) (*turngate.MergedMessage, bool, error) {
	var out turngate.MergedMessage
	resp, err := c.do(ctx, "post utterance", http.MethodPost, sessionPath(sessionID)+"/utterances", map[string]string{"text": text}, &out)
	if err != nil {
		return nil, false, err
	}
	if resp.StatusCode() == http.StatusNoContent {
		return nil, false, nil
	}
	return &out, true, nil
}

// ResetSession discards pending context and the first-turn flag.
func (c *Client) ResetSession(ctx context.Context, sessionID string) error {
	_, err := c.do(ctx, "reset session", http.MethodPost, sessionPath(sessionID)+"/reset", nil, nil)
	return err
}

// SubmitAnalysis records an analysis synchronously and returns what was stored.
func (c *Client) SubmitAnalysis(ctx context.Context, res *model.AnalysisResult) (*model.StorageResult, error) {
	var out model.StorageResult
	if _, err := c.do(ctx, "submit analysis", http.MethodPost, "/api/analyses", res, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EnqueueAnalysis hands an analysis to the service's background dispatcher.
func (c *Client) EnqueueAnalysis(ctx context.Context, res *model.AnalysisResult) error {
	_, err := c.do(ctx, "enqueue analysis", http.MethodPost, "/api/analyses?async=true", res, nil)
	return err
}
