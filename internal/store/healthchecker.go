package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/chrislearn/mofa-studio/internal/health"
	"github.com/chrislearn/mofa-studio/internal/model"
)

// NewStoreHealthChecker monitors store reachability. Stores that implement
// health.HealthPinger are pinged directly; others are probed with a read.
func NewStoreHealthChecker(s Store, log zerolog.Logger, probeTimeout time.Duration) *health.PingChecker {
	p, ok := s.(health.HealthPinger)
	if !ok {
		p = readProbe{s}
	}
	return health.NewPingChecker("store", p, log, probeTimeout)
}

type readProbe struct{ s Store }

// HealthPing reads a sentinel item id; not found means the database answered.
func (r readProbe) HealthPing(ctx context.Context) error {
	_, err := r.s.Items().Get(ctx, -1)
	if err != nil && !model.IsNotFound(err) {
		return err
	}
	return nil
}
