/*
rdapwatch — domain expiration checks over RDAP, driven from chat
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"

	"github.com/x-stp/rdapwatch/internal/metrics"
)

// Job is one unit of work, typically the handling of a single chat command.
// The context is cancelled when the scheduler shuts down.
type Job func(ctx context.Context)

// Scheduler runs jobs on a fixed pool of workers. Jobs are routed by a hash
// of their key, so jobs sharing a key run one at a time in submission order
// while jobs with different keys can run in parallel.
type Scheduler struct {
	numWorkers int
	workers    []*worker
	ctx        context.Context
	cancel     context.CancelFunc
	shutdown   atomic.Bool
	running    sync.WaitGroup // worker goroutines
	log        logrus.FieldLogger
}

// worker encapsulates a single worker goroutine and its queue.
type worker struct {
	id    int
	queue chan Job
}

// NewScheduler creates the scheduler and starts its workers. Non-positive
// arguments fall back to DefaultWorkers and DefaultQueueCapacity.
func NewScheduler(parentCtx context.Context, numWorkers, queueCapacity int, log logrus.FieldLogger) *Scheduler {
	if numWorkers <= 0 {
		numWorkers = DefaultWorkers
	}
	if numWorkers > MaxWorkers {
		numWorkers = MaxWorkers
	}
	if queueCapacity <= 0 {
		queueCapacity = DefaultQueueCapacity
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	sctx, cancel := context.WithCancel(parentCtx)
	s := &Scheduler{
		numWorkers: numWorkers,
		workers:    make([]*worker, numWorkers),
		ctx:        sctx,
		cancel:     cancel,
		log:        log,
	}

	for i := 0; i < numWorkers; i++ {
		w := &worker{
			id:    i,
			queue: make(chan Job, queueCapacity),
		}
		s.workers[i] = w
		s.running.Add(1)
		go s.run(w)
	}

	log.WithFields(logrus.Fields{"workers": numWorkers, "queue": queueCapacity}).Debug("Scheduler started")
	return s
}

// Submit queues job on the worker owning key without blocking.
// Jobs submitted with the same key always land on the same worker, so they run
// one at a time in submission order.
//
// Parameters:
//   key: Routing key, typically a chat ID. It is hashed with xxh3 to pick
//        the worker.
//   job: The work to run. It receives the scheduler's context, which is
//        cancelled by Shutdown.
//
// Returns:
//   nil if the job was queued.
//   ErrQueueFull (retryable) if the worker's queue is at capacity.
//   ErrSchedulerShutdown (not retryable) once Shutdown has been called.
func (s *Scheduler) Submit(key string, job Job) error {
	if s.shutdown.Load() {
		metrics.GetMetrics().RecordJobRejected("shutdown")
		return ErrSchedulerShutdown
	}

	w := s.workers[s.shardFor(key)]
	select {
	case w.queue <- job:
		metrics.GetMetrics().RecordJobSubmitted(w.id)
		metrics.GetMetrics().UpdateQueueMetrics(w.id, len(w.queue))
		return nil
	case <-s.ctx.Done():
		metrics.GetMetrics().RecordJobRejected("shutdown")
		return ErrSchedulerShutdown
	default:
		metrics.GetMetrics().RecordJobRejected("queue_full")
		return ErrQueueFull
	}
}

// Shutdown stops accepting work, cancels running jobs' context, and waits for
// the workers to exit. Jobs still queued are dropped.
func (s *Scheduler) Shutdown() {
	if s.shutdown.Swap(true) {
		return
	}
	s.cancel()
	s.running.Wait()
	s.log.Debug("Scheduler stopped")
}

func (s *Scheduler) shardFor(key string) int {
	return int(xxh3.HashString(key) % uint64(s.numWorkers))
}

func (s *Scheduler) run(w *worker) {
	defer s.running.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case job := <-w.queue:
			metrics.GetMetrics().UpdateQueueMetrics(w.id, len(w.queue))
			s.execute(w, job)
		}
	}
}

func (s *Scheduler) execute(w *worker, job Job) {
	metrics.GetMetrics().SetWorkerBusy(w.id, true)
	defer metrics.GetMetrics().SetWorkerBusy(w.id, false)
	defer func() {
		if r := recover(); r != nil {
			metrics.GetMetrics().RecordWorkerPanic(w.id)
			s.log.WithFields(logrus.Fields{
				"worker_id": w.id,
				"panic":     fmt.Sprint(r),
			}).Error("Recovered panic in worker")
		}
	}()
	job(s.ctx)
}
