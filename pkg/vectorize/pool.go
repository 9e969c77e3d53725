package vectorize

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Revectorizer is the part of Service the pool drives.
type Revectorizer interface {
	Revectorize(ctx context.Context, id string) Result
}

// Job is a unit of work for the worker pool.
type Job struct {
	EntityID string
}

// PoolConfig is the configuration for the worker pool.
type PoolConfig struct {
	Service Revectorizer

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// OnResult, when set, is called after every job.
	OnResult func(Result)

	Logger *slog.Logger
}

// Pool revectorizes entities asynchronously so HTTP handlers can return
// immediately. Jobs for the same entity are still serialized by the
// service's per-entity lock.
type Pool struct {
	config *PoolConfig
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewPool creates a Pool and starts its worker goroutines.
func NewPool(c *PoolConfig) (*Pool, error) {
	if c.Service == nil {
		return nil, fmt.Errorf("pool service is required")
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job. Returns false, dropping the job, when the queue
// is full.
func (p *Pool) Enqueue(job Job) bool {
	job.EntityID = strings.Clone(job.EntityID)

	select {
	case p.queue <- job:
		p.logger.Debug("revectorize job queued", "entity_id", job.EntityID)
		return true
	default:
		p.logger.Error("revectorize job not queued, queue full, job dropped", "entity_id", job.EntityID)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		r := p.config.Service.Revectorize(context.Background(), job.EntityID)
		if r.Success {
			p.logger.Info("entity revectorized",
				"entity_id", job.EntityID,
				"document_id", r.DocumentID,
			)
		} else {
			p.logger.Error("async revectorize failed",
				"entity_id", job.EntityID,
				"error", r.Error,
			)
		}
		if p.config.OnResult != nil {
			p.config.OnResult(r)
		}
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}
