// Package shardqueue is a sharded work queue that runs jobs for the same key in
// FIFO order on a single worker while different keys proceed in parallel. The
// dispatcher keys jobs by session id, which gives every session a single owner.
package shardqueue

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

type queuedJob struct {
	ctx context.Context
	key string
	job Job
}

// ShardExecutor executes jobs on worker goroutines partitioned by a stable hash of the key.
type ShardExecutor struct {
	cfg    Config
	log    zerolog.Logger
	queues []chan queuedJob

	done   chan struct{}
	closed atomic.Bool

	wg sync.WaitGroup
}

// NewShardExecutor constructs the executor and starts its shard workers.
func NewShardExecutor(cfg Config, log zerolog.Logger) *ShardExecutor {
	cfg.applyDefaults()
	p := &ShardExecutor{
		cfg:    cfg,
		log:    log,
		queues: make([]chan queuedJob, cfg.Shards),
		done:   make(chan struct{}),
	}
	for i := 0; i < cfg.Shards; i++ {
		ch := make(chan queuedJob, cfg.QueueSize)
		p.queues[i] = ch
		p.wg.Add(1)
		go p.runWorker(i, ch)
	}
	return p
}

// Submit enqueues job on the shard derived from key.
//
//   - Returns ErrExecutorClosed if the executor is stopped.
//   - Returns a *QueueFullError (errors.Is ErrQueueFull) if the shard stays full
//     for EnqueueTimeout.
//   - Returns ctx.Err() if ctx is cancelled first.
//
// Jobs submitted for one key from a single goroutine run in submission order.
func (p *ShardExecutor) Submit(ctx context.Context, key string, job Job) error {
	return p.enqueue(ctx, ctx, key, job)
}

// SubmitDetached is Submit for work that must outlive the caller: ctx bounds
// only the enqueue wait, and the job runs with a context that is never cancelled
// but still carries ctx's values.
func (p *ShardExecutor) SubmitDetached(ctx context.Context, key string, job Job) error {
	return p.enqueue(ctx, context.WithoutCancel(ctx), key, job)
}

func (p *ShardExecutor) enqueue(waitCtx, jobCtx context.Context, key string, job Job) error {
	if p.closed.Load() {
		return ErrExecutorClosed
	}
	select {
	case <-p.done:
		return ErrExecutorClosed
	default:
	}

	shard := p.shardFor(key)
	ch := p.queues[shard]

	timer := time.NewTimer(p.cfg.EnqueueTimeout)
	defer timer.Stop()

	select {
	case ch <- queuedJob{ctx: jobCtx, key: key, job: job}:
		submissionsTotal.WithLabelValues(labelFor(shard)).Inc()
		return nil
	case <-p.done:
		return ErrExecutorClosed
	case <-waitCtx.Done():
		return waitCtx.Err()
	case <-timer.C:
		queueFullTotal.WithLabelValues(labelFor(shard)).Inc()
		return &QueueFullError{Shard: shard, Length: len(ch), Capacity: cap(ch)}
	}
}

// Barrier waits until every job submitted for key before the call has completed.
func (p *ShardExecutor) Barrier(ctx context.Context, key string) error {
	done := make(chan struct{})
	if err := p.Submit(ctx, key, JobFunc(func(context.Context) error {
		close(done)
		return nil
	})); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Stop drains every shard and waits for the workers to exit. It is idempotent.
func (p *ShardExecutor) Stop() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.log.Info().Int("shards", p.cfg.Shards).Msg("shardqueue: stopping executor")
	close(p.done)
	p.wg.Wait()
	p.log.Info().Msg("shardqueue: executor stopped, all queues drained")
}

// Close lets ShardExecutor satisfy io.Closer.
func (p *ShardExecutor) Close() error {
	p.Stop()
	return nil
}

func (p *ShardExecutor) runWorker(idx int, ch <-chan queuedJob) {
	defer p.wg.Done()
	label := labelFor(idx)

	for {
		select {
		case qj := <-ch:
			p.execute(label, qj, true)
			queueDepth.WithLabelValues(label).Set(float64(len(ch)))

		case <-p.done:
			drained := 0
			for {
				select {
				case qj := <-ch:
					p.execute(label, qj, false)
					drained++
				default:
					if drained > 0 {
						p.log.Info().Int("worker", idx).Int("drained", drained).Msg("shardqueue: drained remaining jobs")
					}
					queueDepth.WithLabelValues(label).Set(0)
					return
				}
			}
		}
	}
}

// execute runs one job, retrying retryable failures with exponential backoff
// unless the executor is draining.
func (p *ShardExecutor) execute(label string, qj queuedJob, retry bool) {
	if qj.job == nil {
		return
	}
	// A job whose caller already gave up does not stall the shard.
	if err := qj.ctx.Err(); err != nil {
		p.safeHandleError(qj.key, err)
		return
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = p.cfg.MaxInterval
	exp.Reset()

	for attempt := 1; ; attempt++ {
		err := p.runSafely(label, qj)
		if err == nil {
			return
		}
		if !retry || !p.retryable(err) || attempt >= p.cfg.MaxAttempts {
			p.safeHandleError(qj.key, err)
			return
		}
		retriesTotal.WithLabelValues(label).Inc()
		p.log.Debug().Err(err).Str("key", qj.key).Int("attempt", attempt).Msg("shardqueue: retrying job")

		select {
		case <-time.After(exp.NextBackOff()):
		case <-p.done:
			retry = false
		case <-qj.ctx.Done():
			p.safeHandleError(qj.key, qj.ctx.Err())
			return
		}
	}
}

// runSafely converts a job panic into an error so the worker survives.
func (p *ShardExecutor) runSafely(label string, qj queuedJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Str("key", qj.key).Interface("panic", r).Msg("shardqueue: job panic")
			err = &PanicError{Value: r}
		}
	}()
	start := time.Now()
	err = qj.job.Run(qj.ctx)
	runDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	return err
}

func (p *ShardExecutor) retryable(err error) bool {
	if _, ok := err.(*PanicError); ok {
		return false
	}
	if p.cfg.Retryable == nil {
		return true
	}
	return p.cfg.Retryable(err)
}

func (p *ShardExecutor) safeHandleError(key string, err error) {
	if err == nil || p.cfg.ErrorHandler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("shardqueue: error handler panic")
		}
	}()
	p.cfg.ErrorHandler(key, err)
}

func (p *ShardExecutor) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.cfg.Shards))
}
