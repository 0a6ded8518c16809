package mcpserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrislearn/mofa-studio/client"
	"github.com/chrislearn/mofa-studio/internal/api"
	"github.com/chrislearn/mofa-studio/internal/core/turngate"
	"github.com/chrislearn/mofa-studio/internal/model"
	"github.com/chrislearn/mofa-studio/internal/pipeline"
	"github.com/chrislearn/mofa-studio/internal/services"
	"github.com/chrislearn/mofa-studio/internal/shardqueue"
	"github.com/chrislearn/mofa-studio/internal/store/sqlite"
)

func newHandler(t *testing.T) (*PracticeHandler, *services.ItemService) {
	t.Helper()
	st, err := sqlite.New(context.Background(), sqlite.MemoryPath)
	require.NoError(t, err)
	log := zerolog.Nop()
	sched := services.NewSchedulerService(st, services.DefaultSchedulerPolicy(), log)
	rec := services.NewRecorderService(st, sched, log)
	items := services.NewItemService(st, log)
	disp := pipeline.New(turngate.New(log), rec, nil, shardqueue.Config{Shards: 1}, log)
	srv := httptest.NewServer(api.NewRouter(api.Deps{
		Scheduler:  sched,
		Items:      items,
		Sessions:   services.NewSessionService(st, log),
		Recorder:   rec,
		Dispatcher: disp,
		Clock:      time.Now,
		Log:        log,
	}))
	t.Cleanup(func() {
		srv.Close()
		_ = disp.Close()
		_ = st.Close()
	})
	c, err := client.New(srv.URL)
	require.NoError(t, err)
	return NewPracticeHandler(c), items
}

func call(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", res.Content[0])
	return tc.Text
}

func TestTools_SelectOutcomeAndDue(t *testing.T) {
	ctx := context.Background()
	h, items := newHandler(t)
	_, err := items.CreateItem(ctx, services.NewItem{Text: "breakfast", Category: model.CategoryUnfamiliar}, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	res, err := h.handleListDue(ctx, call(map[string]any{"category": "unfamiliar"}))
	require.NoError(t, err)
	var due struct {
		Count int        `json:"count"`
		Words []wordLite `json:"words"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &due))
	require.Equal(t, 1, due.Count)

	res, err = h.handleSelect(ctx, call(map[string]any{"min_count": float64(1), "max_count": float64(3)}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	var sel struct {
		SessionID string     `json:"sessionId"`
		Words     []wordLite `json:"words"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &sel))
	require.Len(t, sel.Words, 1)
	assert.Equal(t, "breakfast", sel.Words[0].Text)

	res, err = h.handleRecordOutcome(ctx, call(map[string]any{
		"item_id": float64(sel.Words[0].ItemID), "session_id": sel.SessionID, "outcome": "success",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, textOf(t, res))
	var upd map[string]any
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &upd))
	assert.Equal(t, float64(2), upd["reviewIntervalDays"])

	res, err = h.handleRecordOutcome(ctx, call(map[string]any{"item_id": float64(1), "session_id": sel.SessionID, "outcome": "perfect"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = h.handleSelect(ctx, call(map[string]any{"min_count": 1.5}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestTools_SubmitAnalysis(t *testing.T) {
	ctx := context.Background()
	h, _ := newHandler(t)

	res, err := h.handleSelect(ctx, call(nil))
	require.NoError(t, err)
	var sel struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &sel))

	payload, err := json.Marshal(model.AnalysisResult{
		SessionID:           sel.SessionID,
		UserText:            "I have went there",
		Issues:              []model.Finding{{Type: "grammar", Original: "have went", Suggested: "have gone"}},
		PronunciationIssues: []model.PronunciationFinding{{Word: "there", Confidence: 0.5}},
	})
	require.NoError(t, err)

	res, err = h.handleSubmitAnalysis(ctx, call(map[string]any{"analysis_json": string(payload)}))
	require.NoError(t, err)
	require.False(t, res.IsError, textOf(t, res))
	var out model.StorageResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &out))
	assert.Equal(t, 2, out.AnnotationsStored)
	assert.Equal(t, 1, out.PronunciationIssuesStored)

	res, err = h.handleSubmitAnalysis(ctx, call(map[string]any{"analysis_json": "{not json"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = h.handleSubmitAnalysis(ctx, call(map[string]any{"analysis_json": `{"userText":"x"}`, "async": true}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestNewServer_RegistersTools(t *testing.T) {
	c, err := client.New("http://localhost:11545")
	require.NoError(t, err)
	cfg := &Config{ServerName: "test", ServerVersion: "0.0.1"}
	s, err := NewServer(cfg, c)
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("COMPANION_MCP_TRANSPORT", "http")
	t.Setenv("COMPANION_MCP_PORT", "9999")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Port)
	assert.False(t, useStdio(cfg.Transport))
	assert.True(t, useStdio("stdio"))

	t.Setenv("COMPANION_MCP_TRANSPORT", "carrier-pigeon")
	_, err = LoadConfig()
	assert.Error(t, err)
}
