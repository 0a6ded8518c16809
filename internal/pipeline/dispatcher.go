// Package pipeline owns the per-session event flow: gate events and analysis
// results for one session run in arrival order on a single shard worker.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/chrislearn/mofa-studio/internal/core/turngate"
	"github.com/chrislearn/mofa-studio/internal/model"
	"github.com/chrislearn/mofa-studio/internal/services"
	"github.com/chrislearn/mofa-studio/internal/shardqueue"
)

// Recorder persists one analysis result.
type Recorder interface {
	Validate(res *model.AnalysisResult) error
	Record(ctx context.Context, res *model.AnalysisResult, now time.Time) (*model.StorageResult, error)
}

var _ Recorder = (*services.RecorderService)(nil)

// Dispatcher routes session events through a ShardExecutor keyed by session id.
type Dispatcher struct {
	gate      *turngate.Gate
	recorder  Recorder
	responder Responder
	exec      *shardqueue.ShardExecutor
	now       func() time.Time
	log       zerolog.Logger
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithClock replaces time.Now for analysis timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// New starts a dispatcher. A nil responder discards merged messages.
func New(gate *turngate.Gate, recorder Recorder, responder Responder, cfg shardqueue.Config, log zerolog.Logger, opts ...Option) *Dispatcher {
	if responder == nil {
		responder = discard
	}
	d := &Dispatcher{
		gate:      gate,
		recorder:  recorder,
		responder: responder,
		now:       time.Now,
		log:       log,
	}
	for _, o := range opts {
		o(d)
	}

	cfg.Retryable = retryable
	userHandler := cfg.ErrorHandler
	cfg.ErrorHandler = func(key string, err error) {
		d.log.Error().Err(err).Str("session_id", key).Msg("dispatch job failed")
		if userHandler != nil {
			userHandler(key, err)
		}
	}
	d.exec = shardqueue.NewShardExecutor(cfg, log)
	return d
}

// retryable limits retries to transient store or delivery failures.
func retryable(err error) bool {
	return model.IsStoreUnavailable(err)
}

type gateResult struct {
	msg *turngate.MergedMessage
	ok  bool
}

// Dispatch applies ev on the session's worker and returns the merged message
// when one was emitted. Delivery to the responder is queued behind it.
//
// Once accepted, the gate transition always runs. If ctx ends before it does,
// Dispatch returns ctx.Err() and any emitted message is still delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, ev turngate.Event) (*turngate.MergedMessage, bool, error) {
	key := ev.SessionKey()
	done := make(chan gateResult, 1)
	err := d.exec.SubmitDetached(ctx, key, shardqueue.JobFunc(func(context.Context) error {
		var r gateResult
		defer func() { done <- r }()
		r.msg, r.ok = d.gate.Handle(ev)
		return nil
	}))
	if err != nil {
		return nil, false, err
	}

	var r gateResult
	select {
	case r = <-done:
	default:
		select {
		case r = <-done:
		case <-ctx.Done():
			go func() {
				if late := <-done; late.ok {
					d.deliver(key, late.msg)
				}
			}()
			return nil, false, ctx.Err()
		}
	}
	if !r.ok {
		return nil, false, nil
	}
	d.deliver(key, r.msg)
	return r.msg, true, nil
}

// deliver queues msg for the responder behind the session's earlier jobs.
func (d *Dispatcher) deliver(key string, msg *turngate.MergedMessage) {
	if err := d.exec.SubmitDetached(context.Background(), key, shardqueue.JobFunc(func(jctx context.Context) error {
		return d.responder.Respond(jctx, msg)
	})); err != nil {
		d.log.Warn().Err(err).Str("session_id", key).Msg("merged message not queued for delivery")
	}
}

// SubmitAnalysis validates res and queues it for recording. Invalid results are
// rejected immediately and never reach the queue. ctx bounds only the enqueue;
// an accepted analysis is recorded even after the caller has gone.
func (d *Dispatcher) SubmitAnalysis(ctx context.Context, res *model.AnalysisResult) error {
	if err := d.recorder.Validate(res); err != nil {
		return err
	}
	now := d.now()
	return d.exec.SubmitDetached(ctx, res.SessionID, shardqueue.JobFunc(func(jctx context.Context) error {
		_, err := d.recorder.Record(jctx, res, now)
		return err
	}))
}

// Flush waits until every job queued for sessionID before the call has finished.
func (d *Dispatcher) Flush(ctx context.Context, sessionID string) error {
	return d.exec.Barrier(ctx, sessionID)
}

// Forget drops the gate state of a finished session after its queue drains.
func (d *Dispatcher) Forget(ctx context.Context, sessionID string) error {
	return d.exec.SubmitDetached(ctx, sessionID, shardqueue.JobFunc(func(context.Context) error {
		d.gate.Forget(sessionID)
		return nil
	}))
}

// Close drains queued jobs and stops the workers.
func (d *Dispatcher) Close() error {
	return d.exec.Close()
}
