// Package worker provides an asynchronous worker pool that publishes
// assembled messages using the provided eventstream.Publisher.
//
// The pool decouples publishing from the proxy's HTTP hot path so that the
// client-proxy-upstream interaction is fully transparent.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/chatstream/pkg/assembler"
	"github.com/papercomputeco/chatstream/pkg/eventstream"
	"github.com/papercomputeco/chatstream/pkg/llm"
)

var (
	defaultNumWorkers     uint = 3
	defaultJobQueueSize   uint = 256
	defaultPublishTimeout      = 10 * time.Second
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Source      eventstream.EventSource
	Message     llm.Message
	ParseErrors []string
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher receives one event per job. Required.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// PublishTimeout bounds a single publish call (defaults to 10s).
	PublishTimeout time.Duration

	Logger *slog.Logger
}

// Pool publishes jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, errors.New("worker pool requires a publisher")
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.PublishTimeout == 0 {
		c.PublishTimeout = defaultPublishTimeout
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
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

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is
// closed, resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("job not queued, pool closed", "message_id", job.Message.ID)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"message_id", job.Message.ID,
			"origin", job.Source.Origin,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"message_id", job.Message.ID,
			"origin", job.Source.Origin,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
// The publisher is not closed.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
	defer cancel()

	event := eventstream.NewMessageAssembledEvent(job.Source, job.Message, job.ParseErrors)
	if err := p.config.Publisher.PublishMessage(ctx, event); err != nil {
		p.logger.Error("publishing assembled message failed",
			"message_id", job.Message.ID,
			"event_id", event.EventID,
			"error", err,
		)
		return
	}

	p.logger.Info("message published",
		"message_id", job.Message.ID,
		"event_id", event.EventID,
		"origin", job.Source.Origin,
		"blocks", len(job.Message.Content),
	)
}

// EnqueueResult enqueues one job per assembled message in res, each carrying
// the stream's parse errors. It returns how many jobs were accepted.
func (p *Pool) EnqueueResult(source eventstream.EventSource, res assembler.Result) int {
	accepted := 0
	for _, msg := range res.Messages {
		if p.Enqueue(Job{Source: source, Message: msg, ParseErrors: res.ParseErrors}) {
			accepted++
		}
	}
	return accepted
}
