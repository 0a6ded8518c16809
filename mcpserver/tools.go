package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/chrislearn/mofa-studio/client"
	"github.com/chrislearn/mofa-studio/internal/model"
)

// PracticeHandler exposes scheduling and analysis tools to the dialogue agent.
type PracticeHandler struct {
	client *client.Client
}

func NewPracticeHandler(c *client.Client) *PracticeHandler { return &PracticeHandler{client: c} }

func (h *PracticeHandler) RegisterTools(s *server.MCPServer) error {
	sel := mcp.NewTool("select_review_words",
		mcp.WithDescription("Start a practice session; returns sessionId and the words to weave into the conversation"),
		mcp.WithNumber("min_count", mcp.Description("Minimum number of words (default from service)")),
		mcp.WithNumber("max_count", mcp.Description("Maximum number of words (default from service)")),
	)
	outcome := mcp.NewTool("record_practice_outcome",
		mcp.WithDescription("Record whether the learner used a target word correctly"),
		mcp.WithNumber("item_id", mcp.Required(), mcp.Description("Vocabulary item id")),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id returned by select_review_words")),
		mcp.WithString("outcome", mcp.Required(), mcp.Enum("success", "failure", "neutral"), mcp.Description("Practice outcome")),
	)
	analysis := mcp.NewTool("submit_analysis",
		mcp.WithDescription("Store the grammar, usage and pronunciation findings for one learner utterance"),
		mcp.WithString("analysis_json", mcp.Required(), mcp.Description(`JSON object: {"sessionId","turnId"?,"userText","issues":[{"type","original","suggested","description":{"text","translation"},"severity"}],"pronunciationIssues":[{"word","confidence"}]}`)),
		mcp.WithBoolean("async", mcp.Description("Queue the analysis instead of waiting for it to be stored")),
	)
	due := mcp.NewTool("list_due_words",
		mcp.WithDescription("List vocabulary items due for review"),
		mcp.WithString("category", mcp.Enum("pronunciation", "grammar", "usage", "unfamiliar"), mcp.Description("Optional category filter")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of items (default 20)")),
	)
	s.AddTool(sel, h.handleSelect)
	s.AddTool(outcome, h.handleRecordOutcome)
	s.AddTool(analysis, h.handleSubmitAnalysis)
	s.AddTool(due, h.handleListDue)
	return nil
}

// intArg reads an optional integral number argument.
func intArg(req mcp.CallToolRequest, key string, def int) (int, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return def, nil
	}
	f, ok := raw.(float64)
	if !ok {
		if i, isInt := raw.(int); isInt {
			return i, nil
		}
		return 0, fmt.Errorf("%s must be a number", key)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return int(f), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}

type wordLite struct {
	ItemID      int64           `json:"itemId"`
	Text        string          `json:"text"`
	Category    model.Category  `json:"category"`
	Description model.Bilingual `json:"description"`
	Difficulty  int             `json:"difficulty"`
}

func toLite(items []model.VocabularyItem) []wordLite {
	out := make([]wordLite, len(items))
	for i, it := range items {
		out[i] = wordLite{ItemID: it.ItemID, Text: it.Text, Category: it.Category, Description: it.Description, Difficulty: it.DifficultyLevel}
	}
	return out
}

func (h *PracticeHandler) handleSelect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	minCount, err := intArg(req, "min_count", 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	maxCount, err := intArg(req, "max_count", 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	log.Debug().Int("min", minCount).Int("max", maxCount).Msg("select_review_words invoked")

	start := time.Now()
	sel, err := h.client.Select(ctx, minCount, maxCount)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("select_review_words failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to select words: %v", err)), nil
	}
	return jsonResult(map[string]any{"sessionId": sel.SessionID, "words": toLite(sel.Items)})
}

func (h *PracticeHandler) handleRecordOutcome(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	itemID, err := intArg(req, "item_id", 0)
	if err != nil || itemID <= 0 {
		return mcp.NewToolResultError("item_id must be a positive integer"), nil
	}
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("outcome")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	outcome, err := model.ParseOutcome(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	log.Debug().Int("item_id", itemID).Str("session_id", sessionID).Str("outcome", raw).Msg("record_practice_outcome invoked")

	it, err := h.client.RecordOutcome(ctx, int64(itemID), sessionID, outcome)
	if err != nil {
		log.Error().Err(err).Msg("record_practice_outcome failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to record outcome: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"itemId":             it.ItemID,
		"text":               it.Text,
		"nextReviewTime":     it.NextReviewTime,
		"reviewIntervalDays": it.ReviewIntervalDays,
		"difficulty":         it.DifficultyLevel,
	})
}

func (h *PracticeHandler) handleSubmitAnalysis(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("analysis_json")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var res model.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis_json is not valid JSON: %v", err)), nil
	}
	async, _ := req.GetArguments()["async"].(bool)
	log.Debug().Str("session_id", res.SessionID).Int("issues", len(res.Issues)).Bool("async", async).Msg("submit_analysis invoked")

	if async {
		if err := h.client.EnqueueAnalysis(ctx, &res); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to queue analysis: %v", err)), nil
		}
		return jsonResult(map[string]any{"queued": true})
	}
	out, err := h.client.SubmitAnalysis(ctx, &res)
	if err != nil {
		log.Error().Err(err).Msg("submit_analysis failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to store analysis: %v", err)), nil
	}
	return jsonResult(out)
}

func (h *PracticeHandler) handleListDue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit, err := intArg(req, "limit", 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts := client.ListItemsOptions{DueOnly: true, Limit: limit}
	if c, _ := req.GetArguments()["category"].(string); c != "" {
		cat, err := model.ParseCategory(c)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		opts.Category = cat
	}
	items, err := h.client.ListItems(ctx, opts)
	if err != nil {
		log.Error().Err(err).Msg("list_due_words failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to list due words: %v", err)), nil
	}
	return jsonResult(map[string]any{"words": toLite(items), "count": len(items)})
}
