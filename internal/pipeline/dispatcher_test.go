package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrislearn/mofa-studio/internal/core/turngate"
	"github.com/chrislearn/mofa-studio/internal/model"
	"github.com/chrislearn/mofa-studio/internal/services"
	"github.com/chrislearn/mofa-studio/internal/shardqueue"
	"github.com/chrislearn/mofa-studio/internal/store/sqlite"
)

var testNow = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

type flakyRecorder struct {
	failures atomic.Int32
	calls    atomic.Int32
}

func (r *flakyRecorder) Validate(res *model.AnalysisResult) error {
	if res.SessionID == "" {
		return model.NewValidationError("sessionId", "is required")
	}
	return nil
}

func (r *flakyRecorder) Record(context.Context, *model.AnalysisResult, time.Time) (*model.StorageResult, error) {
	r.calls.Add(1)
	if r.failures.Add(-1) >= 0 {
		return nil, model.Unavailable("record", errors.New("database is locked"))
	}
	return &model.StorageResult{}, nil
}

type collector struct {
	mu   sync.Mutex
	msgs []*turngate.MergedMessage
}

func (c *collector) Respond(_ context.Context, m *turngate.MergedMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
	return nil
}

func (c *collector) all() []*turngate.MergedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*turngate.MergedMessage(nil), c.msgs...)
}

func fastConfig() shardqueue.Config {
	return shardqueue.Config{Shards: 2, QueueSize: 16, MaxAttempts: 4, BaseBackoff: time.Millisecond}
}

func TestDispatch_ContextThenUtterance(t *testing.T) {
	ctx := context.Background()
	col := &collector{}
	d := New(turngate.New(zerolog.Nop()), &flakyRecorder{}, col, fastConfig(), zerolog.Nop())
	defer d.Close()

	msg, ok, err := d.Dispatch(ctx, turngate.ContextArrived{SessionID: "s1", Topic: "weekend plans", TargetWords: []string{"hike"}})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, msg)

	msg, ok, err = d.Dispatch(ctx, turngate.UserUtterance{SessionID: "s1", Text: "I went hiking"})
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, msg.Topic)
	assert.Equal(t, "weekend plans", *msg.Topic)
	assert.Equal(t, []string{"hike"}, msg.TargetWords)
	assert.True(t, msg.IsFirstInSession)

	_, ok, err = d.Dispatch(ctx, turngate.UserUtterance{SessionID: "s1", Text: "   "})
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.Flush(ctx, "s1"))
	got := col.all()
	require.Len(t, got, 1)
	assert.Equal(t, "I went hiking", got[0].UserText)
}

func TestDispatch_OrderPerSession(t *testing.T) {
	ctx := context.Background()
	col := &collector{}
	d := New(turngate.New(zerolog.Nop()), &flakyRecorder{}, col, fastConfig(), zerolog.Nop())
	defer d.Close()

	texts := []string{"one", "two", "three", "four"}
	for _, txt := range texts {
		_, ok, err := d.Dispatch(ctx, turngate.UserUtterance{SessionID: "s1", Text: txt})
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, d.Flush(ctx, "s1"))
	got := col.all()
	require.Len(t, got, len(texts))
	for i, m := range got {
		assert.Equal(t, texts[i], m.UserText)
		assert.Equal(t, i == 0, m.IsFirstInSession)
	}
}

func TestSubmitAnalysis_RetriesUnavailable(t *testing.T) {
	ctx := context.Background()
	rec := &flakyRecorder{}
	rec.failures.Store(2)
	d := New(turngate.New(zerolog.Nop()), rec, nil, fastConfig(), zerolog.Nop())
	defer d.Close()

	require.NoError(t, d.SubmitAnalysis(ctx, &model.AnalysisResult{SessionID: "s1"}))
	require.NoError(t, d.Flush(ctx, "s1"))
	assert.Equal(t, int32(3), rec.calls.Load())
}

func TestSubmitAnalysis_InvalidRejectedUpfront(t *testing.T) {
	rec := &flakyRecorder{}
	d := New(turngate.New(zerolog.Nop()), rec, nil, fastConfig(), zerolog.Nop())
	defer d.Close()

	err := d.SubmitAnalysis(context.Background(), &model.AnalysisResult{})
	assert.True(t, model.IsValidationError(err))
	assert.Zero(t, rec.calls.Load())
}

func TestSubmitAnalysis_RecordsIntoStore(t *testing.T) {
	ctx := context.Background()
	st, err := sqlite.New(ctx, sqlite.MemoryPath)
	require.NoError(t, err)
	defer st.Close()
	_, err = st.Sessions().Create(ctx, &model.LearningSession{SessionID: "s1", StartTime: testNow})
	require.NoError(t, err)

	sched := services.NewSchedulerService(st, services.DefaultSchedulerPolicy(), zerolog.Nop())
	rec := services.NewRecorderService(st, sched, zerolog.Nop())

	var failed atomic.Int32
	cfg := fastConfig()
	cfg.ErrorHandler = func(string, error) { failed.Add(1) }
	d := New(turngate.New(zerolog.Nop()), rec, nil, cfg, zerolog.Nop(), WithClock(func() time.Time { return testNow }))
	defer d.Close()

	require.NoError(t, d.SubmitAnalysis(ctx, &model.AnalysisResult{
		SessionID: "s1",
		UserText:  "I goes home",
		Issues:    []model.Finding{{Type: "grammar", Original: "I goes", Suggested: "I went"}},
	}))
	// Unknown session: not retryable, reaches the error handler once.
	require.NoError(t, d.SubmitAnalysis(ctx, &model.AnalysisResult{SessionID: "ghost", UserText: "hi"}))
	require.NoError(t, d.Flush(ctx, "s1"))
	require.NoError(t, d.Flush(ctx, "ghost"))

	anns, err := st.Annotations().ListBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, anns, 1)
	it, err := st.Items().FindByText(ctx, "i goes", model.CategoryGrammar)
	require.NoError(t, err)
	assert.Equal(t, 3, it.DifficultyLevel)
	assert.Equal(t, int32(1), failed.Load())
}

// blockingResponder holds the session's shard until release is closed.
type blockingResponder struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	col     collector
}

func newBlockingResponder() *blockingResponder {
	return &blockingResponder{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingResponder) Respond(ctx context.Context, m *turngate.MergedMessage) error {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.col.Respond(ctx, m)
}

func TestSubmitAnalysis_SurvivesCallerCancel(t *testing.T) {
	ctx := context.Background()
	rec := &flakyRecorder{}
	var handled atomic.Int32
	cfg := fastConfig()
	cfg.ErrorHandler = func(string, error) { handled.Add(1) }
	resp := newBlockingResponder()
	d := New(turngate.New(zerolog.Nop()), rec, resp, cfg, zerolog.Nop())
	defer d.Close()

	_, ok, err := d.Dispatch(ctx, turngate.UserUtterance{SessionID: "s1", Text: "hello"})
	require.NoError(t, err)
	require.True(t, ok)
	<-resp.started

	reqCtx, cancel := context.WithCancel(ctx)
	require.NoError(t, d.SubmitAnalysis(reqCtx, &model.AnalysisResult{SessionID: "s1", UserText: "hello"}))
	cancel()
	close(resp.release)

	require.NoError(t, d.Flush(ctx, "s1"))
	assert.Equal(t, int32(1), rec.calls.Load())
	assert.Zero(t, handled.Load())
}

func TestDispatch_CancelledCallerStillDelivers(t *testing.T) {
	ctx := context.Background()
	resp := newBlockingResponder()
	d := New(turngate.New(zerolog.Nop()), &flakyRecorder{}, resp, fastConfig(), zerolog.Nop())
	defer d.Close()

	_, ok, err := d.Dispatch(ctx, turngate.UserUtterance{SessionID: "s1", Text: "first"})
	require.NoError(t, err)
	require.True(t, ok)
	<-resp.started

	// The gate job waits behind the blocked delivery while the caller gives up.
	reqCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, ok, err = d.Dispatch(reqCtx, turngate.UserUtterance{SessionID: "s1", Text: "second"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ok)

	close(resp.release)
	require.Eventually(t, func() bool { return len(resp.col.all()) == 2 }, time.Second, 5*time.Millisecond)
	got := resp.col.all()
	assert.Equal(t, "first", got[0].UserText)
	assert.Equal(t, "second", got[1].UserText)
}

func TestForget_DropsGateState(t *testing.T) {
	ctx := context.Background()
	gate := turngate.New(zerolog.Nop())
	d := New(gate, &flakyRecorder{}, nil, fastConfig(), zerolog.Nop())
	defer d.Close()

	_, _, err := d.Dispatch(ctx, turngate.ContextArrived{SessionID: "s1", Topic: "t"})
	require.NoError(t, err)
	require.NoError(t, d.Forget(ctx, "s1"))
	require.NoError(t, d.Flush(ctx, "s1"))
	assert.Equal(t, 0, gate.Len())
}

func TestWebhookResponder(t *testing.T) {
	var (
		mu  sync.Mutex
		got turngate.MergedMessage
	)
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			mu.Lock()
			_ = json.NewDecoder(r.Body).Decode(&got)
			mu.Unlock()
		}
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	w := NewWebhookResponder(srv.URL, time.Second)
	topic := "travel"
	require.NoError(t, w.Respond(context.Background(), &turngate.MergedMessage{UserText: "hello", SessionID: "s1", Topic: &topic, TargetWords: []string{}}))
	mu.Lock()
	assert.Equal(t, "hello", got.UserText)
	require.NotNil(t, got.Topic)
	assert.Equal(t, "travel", *got.Topic)
	mu.Unlock()
	require.NoError(t, w.HealthPing(context.Background()))

	status.Store(http.StatusServiceUnavailable)
	err := w.Respond(context.Background(), &turngate.MergedMessage{UserText: "x", SessionID: "s1"})
	assert.True(t, model.IsStoreUnavailable(err))

	status.Store(http.StatusBadRequest)
	err = w.Respond(context.Background(), &turngate.MergedMessage{UserText: "x", SessionID: "s1"})
	assert.True(t, model.IsValidationError(err))
}
