package board

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"task-board/storage"
)

type syncJob struct {
	op   string
	task string
	call func(ctx context.Context) error
}

// pool runs remote calls in the background. Calls are never serialised
// against each other: when the buffer stays full past the hand-off timeout
// the job gets its own goroutine.
type pool struct {
	jobs    chan syncJob
	handoff time.Duration
	log     *log.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func newPool(workers, buffer int, handoff time.Duration, logger *log.Logger) *pool {
	p := &pool{
		jobs:    make(chan syncJob, buffer),
		handoff: handoff,
		log:     logger,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	logger.Infof("remote sync started, workers: %d, buffer: %d, handoff: %v", workers, buffer, handoff)
	return p
}

func (p *pool) worker(id int) {
	defer p.wg.Done()
	for j := range p.jobs {
		p.run(id, j)
	}
}

// run executes a job on a context detached from any caller.
func (p *pool) run(worker int, j syncJob) {
	err := j.call(context.Background())
	if err == nil {
		p.log.WithFields(log.Fields{"op": j.op, "task": j.task}).Debug("remote sync done")
		return
	}
	entry := p.log.WithError(err).WithFields(log.Fields{
		"op":     j.op,
		"task":   j.task,
		"worker": worker,
	})
	if errors.Is(err, storage.ErrUnconfigured) {
		entry.Debug("remote sync skipped")
		return
	}
	entry.Warn("remote sync failed")
}

// submit hands j to the pool. It reports false once the pool is closed.
func (p *pool) submit(j syncJob) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	if trySendNonBlocking(p.jobs, j) {
		return true
	}
	if p.handoff > 0 {
		timer := time.NewTimer(p.handoff)
		defer timer.Stop()
		if sendWithTimer(p.jobs, j, timer.C) {
			return true
		}
	}

	p.log.WithFields(log.Fields{"op": j.op, "task": j.task}).Warn("remote sync buffer saturated; running call on its own goroutine")
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(-1, j)
	}()
	return true
}

// close stops intake and waits for every accepted job to finish.
func (p *pool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}

func trySendNonBlocking(ch chan<- syncJob, j syncJob) bool {
	select {
	case ch <- j:
		return true
	default:
		return false
	}
}

func sendWithTimer(ch chan<- syncJob, j syncJob, timer <-chan time.Time) bool {
	select {
	case ch <- j:
		return true
	case <-timer:
		return false
	}
}
