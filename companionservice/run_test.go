package companionservice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrislearn/mofa-studio/internal/config"
)

func TestStartupHealthTimeout(t *testing.T) {
	assert.Equal(t, 60*time.Second, startupHealthTimeout(0))
	assert.Equal(t, 60*time.Second, startupHealthTimeout(30))
	assert.Equal(t, 120*time.Second, startupHealthTimeout(60))
}

func TestBuild_ServesAndBecomesHealthy(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.HealthIntervalSeconds = 1
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := Build(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer svc.Close(zerolog.Nop())

	svc.StartHealthCheckers(ctx, cfg)
	require.NoError(t, waitUntilHealthy(ctx, cfg, svc.Health))

	srv := httptest.NewServer(svc.Router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/items")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWaitUntilHealthy_ContextCanceled(t *testing.T) {
	cfg := config.NewForTesting()
	ctx, cancel := context.WithCancel(context.Background())
	svc, err := Build(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer svc.Close(zerolog.Nop())

	cancel()
	err = waitUntilHealthy(ctx, cfg, svc.Health)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewHTTPServer(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.HTTPPort = 18080
	s := newHTTPServer(context.Background(), cfg, http.NotFoundHandler())
	assert.Equal(t, ":18080", s.Addr)
	assert.Equal(t, 15*time.Second, s.ReadTimeout)
	assert.NotNil(t, s.BaseContext)
}

func TestDispatchConfig_FromServiceConfig(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.DispatchShards = 8
	cfg.DispatchQueueSize = 64
	cfg.DispatchMaxAttempts = 7

	dc := dispatchConfig(cfg)
	assert.Equal(t, 8, dc.Shards)
	assert.Equal(t, 64, dc.QueueSize)
	assert.Equal(t, 7, dc.MaxAttempts)
}
