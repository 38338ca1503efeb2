package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"embed-delivery/internal/media"
	"embed-delivery/internal/platform/metrics"

	"github.com/google/uuid"
)

var (
	ErrQueueFull   = errors.New("transcode queue full")
	ErrPoolStopped = errors.New("transcode pool stopped")
)

// Job asks for one source file to be transcoded into the ladder.
type Job struct {
	ID         string
	ResourceID string
	SourcePath string
}

// NewJob returns a job with a fresh ID.
func NewJob(resourceID, sourcePath string) Job {
	return Job{ID: uuid.NewString(), ResourceID: resourceID, SourcePath: sourcePath}
}

// ResourceWriter records the resource a job transcodes.
type ResourceWriter interface {
	CreateResource(ctx context.Context, r media.Resource) error
}

// PoolConfig sizes the pool.
type PoolConfig struct {
	Workers   int
	QueueSize int
	Preview   bool
}

// Pool runs transcode jobs on a fixed number of workers in submission order.
type Pool struct {
	orch      *Orchestrator
	prober    Prober
	resources ResourceWriter
	layout    media.Layout
	cfg       PoolConfig
	log       *slog.Logger
	metrics   *metrics.Metrics
	jobs      chan Job

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

// NewPool returns a pool. Jobs submitted before Start wait in the queue.
func NewPool(orch *Orchestrator, prober Prober, resources ResourceWriter, layout media.Layout, cfg PoolConfig, log *slog.Logger, m *metrics.Metrics) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 16
	}
	return &Pool{
		orch:      orch,
		prober:    prober,
		resources: resources,
		layout:    layout,
		cfg:       cfg,
		log:       log,
		metrics:   m,
		jobs:      make(chan Job, cfg.QueueSize),
	}
}

// Start launches the workers. Cancelling ctx has the same effect as Stop
// without waiting.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrPoolStopped
	}
	if p.cancel != nil {
		return fmt.Errorf("pool already started")
	}
	ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	return nil
}

// Submit queues a job without blocking.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.jobs <- job:
		p.metrics.SetJobsQueued(len(p.jobs))
		return nil
	default:
		return ErrQueueFull
	}
}

// Queued returns the number of jobs waiting for a worker.
func (p *Pool) Queued() int {
	return len(p.jobs)
}

// Stop cancels running encodes, which kills their ffmpeg processes, and waits
// for the workers to exit. Queued jobs are discarded.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.jobs:
			p.metrics.SetJobsQueued(len(p.jobs))
			p.process(ctx, job)
		}
	}
}

// process runs one job. The source file belongs to the pool once submitted and
// is removed when the job finishes, unless the pool is shutting down.
func (p *Pool) process(ctx context.Context, job Job) {
	log := p.log.With(slog.String("job_id", job.ID), slog.String("resource_id", job.ResourceID))
	start := time.Now()
	defer func() {
		if ctx.Err() == nil {
			p.removeSource(log, job.SourcePath)
		}
	}()

	duration, err := p.prober.Duration(ctx, job.SourcePath)
	if err != nil {
		p.finish(log, "failed", fmt.Errorf("probe: %w", err))
		return
	}
	if err := p.resources.CreateResource(ctx, media.Resource{ID: job.ResourceID, Duration: duration}); err != nil {
		p.finish(log, "failed", fmt.Errorf("record resource: %w", err))
		return
	}

	dir := p.layout.ResourceDir(job.ResourceID)
	rends, err := p.orch.Transcode(ctx, job.SourcePath, dir, job.ResourceID)
	switch {
	case ctx.Err() != nil:
		p.finish(log, "canceled", err, slog.Int("renditions", len(rends)))
		return
	case err != nil:
		p.finish(log, "failed", err, slog.Int("renditions", len(rends)))
		return
	case len(rends) == 0:
		p.finish(log, "empty", errors.New("every tier failed"))
		return
	}

	if p.cfg.Preview {
		if _, err := p.orch.Preview(ctx, job.SourcePath, dir, job.ResourceID); err != nil {
			log.Warn("preview failed", slog.String("error", err.Error()))
		}
	}

	p.finish(log, "ok", nil,
		slog.Int("renditions", len(rends)),
		slog.Float64("duration", duration),
		slog.Duration("elapsed", time.Since(start)))
}

func (p *Pool) removeSource(log *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("remove source failed", slog.String("error", err.Error()))
	}
}

func (p *Pool) finish(log *slog.Logger, outcome string, err error, attrs ...any) {
	p.metrics.ObserveJob(outcome)
	attrs = append(attrs, slog.String("outcome", outcome))
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		log.Error("transcode job finished", attrs...)
		return
	}
	log.Info("transcode job finished", attrs...)
}
