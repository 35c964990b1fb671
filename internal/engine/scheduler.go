package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Scheduler is the single-writer task loop.
//
// Thread-safety model:
//   - Post(), Go(), Stop(): safe from any goroutine
//   - Run() or Drain(): called from exactly one goroutine at a time; every
//     task runs there
//
// Tasks run in FIFO order. Work started with Go runs concurrently, but
// only its returned completion task touches loop-owned state.
type Scheduler struct {
	queue    *taskQueue
	ctx      context.Context
	cancel   context.CancelFunc
	inflight atomic.Int64
	wg       sync.WaitGroup
}

// NewScheduler creates an idle scheduler.
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		queue:  newTaskQueue(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Post submits a task to the loop. Returns false after Stop.
func (s *Scheduler) Post(t Task) bool {
	return s.queue.Enqueue(t)
}

// Go runs work on its own goroutine and posts the task it returns, if
// any, back to the loop. work receives a context cancelled by Stop.
func (s *Scheduler) Go(work func(ctx context.Context) Task) {
	s.inflight.Add(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if done := work(s.ctx); done != nil {
			s.queue.Enqueue(done)
		}
		// Decrement after the completion is queued so Drain cannot observe
		// an idle scheduler with a completion still to come.
		s.inflight.Add(-1)
		s.queue.Notify()
	}()
}

// InFlight returns the number of Go workers that have not finished.
func (s *Scheduler) InFlight() int {
	return int(s.inflight.Load())
}

// Run processes tasks until ctx is cancelled or Stop is called.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler starting")

	for {
		if t, ok := s.queue.TryDequeue(); ok {
			t()
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("scheduler stopping: context cancelled")
			s.Stop()
			return ctx.Err()

		case <-s.queue.Wait():
			if s.queue.Closed() && s.queue.Len() == 0 {
				slog.Info("scheduler stopping: queue closed")
				return nil
			}
		}
	}
}

// Drain runs tasks on the calling goroutine until no task is queued and no
// worker is in flight. Command-line tools and tests use it in place of Run.
func (s *Scheduler) Drain(ctx context.Context) error {
	for {
		if t, ok := s.queue.TryDequeue(); ok {
			t()
			continue
		}
		if s.inflight.Load() == 0 {
			if s.queue.Len() == 0 {
				return nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.queue.Wait():
			if s.queue.Closed() && s.queue.Len() == 0 {
				return nil
			}
		}
	}
}

// Stop cancels in-flight work and closes the queue. Completions that
// arrive afterwards are dropped.
func (s *Scheduler) Stop() {
	s.cancel()
	s.queue.Close()
}

// Wait blocks until every Go worker has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
