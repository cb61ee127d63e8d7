package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned by Submit when the batch queue is at capacity.
	ErrQueueFull = errors.New("batch queue is full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("pipeline stopped")
)

// OrchestratorConfig sizes the batch queue and its workers.
type OrchestratorConfig struct {
	Workers         int
	QueueSize       int
	BatchTTL        time.Duration
	CleanupInterval time.Duration
}

// Orchestrator queues batches for asynchronous processing and keeps their
// state around for polling until the TTL expires.
type Orchestrator struct {
	batches *BatchStore
	queue   chan *Batch
	proc    *Processor
	log     *slog.Logger
	cfg     OrchestratorConfig

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(proc *Processor, cfg OrchestratorConfig, log *slog.Logger) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.BatchTTL <= 0 {
		cfg.BatchTTL = time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		batches: NewBatchStore(cfg.BatchTTL),
		queue:   make(chan *Batch, cfg.QueueSize),
		proc:    proc,
		log:     log,
		cfg:     cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.Workers {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case b, ok := <-o.queue:
					if !ok {
						return
					}
					if err := o.proc.Process(workerCtx, b); err != nil {
						o.log.Error("batch processing failed", "batch_id", b.ID, "error", err)
					}
				}
			}
		}()
	}

	// Start batch store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if n := o.batches.Cleanup(); n > 0 {
					o.log.Debug("expired batches removed", "count", n)
				}
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline. Batches still queued are marked
// failed.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()

	for b := range o.queue {
		b.abort("pipeline stopped")
	}
}

// Submit queues a batch for asynchronous processing.
func (o *Orchestrator) Submit(b *Batch) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return ErrStopped
	}

	o.batches.Put(b)
	select {
	case o.queue <- b:
		return nil
	default:
		b.abort("queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.QueueSize)
	}
}

// Run processes a batch on the caller's goroutine and keeps it available for
// status polling.
func (o *Orchestrator) Run(ctx context.Context, b *Batch) error {
	o.batches.Put(b)
	return o.proc.Process(ctx, b)
}

// GetBatch returns a batch by ID.
func (o *Orchestrator) GetBatch(id string) *Batch {
	return o.batches.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
