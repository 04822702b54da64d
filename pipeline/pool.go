package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"mediaIndex/core"
	"mediaIndex/storage"
)

var ErrQueueFull = errors.New("processing queue is full")

// Pool runs jobs on a fixed set of workers fed by a bounded queue.
type Pool struct {
	runner  *Runner
	store   storage.Store
	jobs    chan string
	workers int

	wg   sync.WaitGroup
	quit chan struct{}

	mu        sync.Mutex
	submitted int64
	completed int64
	failed    int64
	started   time.Time
}

func NewPool(workers, queueSize int, runner *Runner, store storage.Store) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = workers * 4
	}
	return &Pool{
		runner:  runner,
		store:   store,
		jobs:    make(chan string, queueSize),
		workers: workers,
		quit:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	p.started = time.Now()
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	log.Printf("worker pool started: %d workers, queue %d", p.workers, cap(p.jobs))
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case jobID, ok := <-p.jobs:
			if !ok {
				return
			}
			err := p.runner.RunJob(context.Background(), jobID)
			p.mu.Lock()
			if err != nil {
				p.failed++
			} else {
				p.completed++
			}
			p.mu.Unlock()
			if err != nil {
				log.Printf("worker %d: job %s: %v", id, jobID, err)
			}
		}
	}
}

// Submit commits the transition to processing and hands the job to a
// worker. The caller sees the job as processing as soon as Submit returns;
// a full queue fails the job instead of blocking the request.
func (p *Pool) Submit(ctx context.Context, job *core.Job) error {
	job.Status = core.StatusProcessing
	if err := p.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("mark job processing: %w", err)
	}
	select {
	case p.jobs <- job.ID:
		p.mu.Lock()
		p.submitted++
		p.mu.Unlock()
		return nil
	default:
		job.Status = core.StatusError
		job.ErrorMsg = ErrQueueFull.Error()
		if err := p.store.UpdateJob(ctx, job); err != nil {
			log.Printf("job %s: record queue overflow: %v", job.ID, err)
		}
		return ErrQueueFull
	}
}

// Shutdown stops accepting work and waits for in-flight jobs to finish.
func (p *Pool) Shutdown() {
	close(p.quit)
	p.wg.Wait()
}

type PoolStats struct {
	Workers   int     `json:"workers"`
	QueueLen  int     `json:"queue_len"`
	QueueCap  int     `json:"queue_cap"`
	Submitted int64   `json:"submitted"`
	Completed int64   `json:"completed"`
	Failed    int64   `json:"failed"`
	UptimeSec float64 `json:"uptime_sec"`
}

func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Workers:   p.workers,
		QueueLen:  len(p.jobs),
		QueueCap:  cap(p.jobs),
		Submitted: p.submitted,
		Completed: p.completed,
		Failed:    p.failed,
		UptimeSec: time.Since(p.started).Seconds(),
	}
}
