// Package fetcher implements a concurrent fetch engine. Jobs are plain
// file downloads, temporary-file downloads or git clones, distributed
// over a fixed pool of persistent workers. One worker always takes the
// largest pending job so big transfers are never starved behind small
// ones; the rest drain the queue smallest-first. Workers share DNS and
// TLS session caches but keep their own connections, progress flows
// back throttled, and a failing job never takes down its worker.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/livingsilver94/serpentos-libmoss/internal/gitcmd"
	"github.com/livingsilver94/serpentos-libmoss/internal/metrics"
)

// ErrClosed is returned by Fetch after Close.
var ErrClosed = errors.New("fetcher is closed")

// Fetcher owns the job queue, the worker pool and the connection state
// the workers share. Enqueue and Fetch may be used from different
// goroutines; Fetch and Close serialize against each other.
type Fetcher struct {
	log              *slog.Logger
	userAgent        string
	progressInterval time.Duration
	sink             ProgressSink

	qmu   sync.Mutex
	queue *fetchQueue
	// cycle is the context of the running fetch cycle, guarded by
	// qmu. Allocation consults it so cancellation stops handing out
	// jobs without ever leaking into a later cycle: in-flight jobs
	// still finish, the rest stay queued.
	cycle context.Context

	workers []*connWorker
	shared  *sharedConnState
	git     *gitcmd.Client

	events   chan workerEvent
	shutdown chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

// New builds a Fetcher. The pool defaults to one worker less than the
// number of CPUs, floored at one; worker 0 prefers the largest pending
// job, every other worker the smallest. Workers start on the first
// Fetch. A configuration or shared-state failure aborts construction:
// a partially built pool is never returned.
func New(opts ...Option) (*Fetcher, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Sink == nil {
		o.Sink = nopSink{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if err := o.validate(); err != nil {
		return nil, fmt.Errorf("fetcher: %w", err)
	}

	shared, err := newSharedConnState(o.Workers, o.DNSCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("fetcher: %w", err)
	}

	f := &Fetcher{
		log:              o.Logger,
		userAgent:        o.UserAgent,
		progressInterval: o.ProgressInterval,
		sink:             o.Sink,
		queue:            newFetchQueue(),
		shared:           shared,
		git:              gitcmd.New(o.GitPath, o.Logger),
		events:           make(chan workerEvent, o.Workers*4),
		shutdown:         make(chan struct{}),
	}
	f.workers = make([]*connWorker, o.Workers)
	for i := range f.workers {
		pref := SmallItems
		if i == 0 {
			pref = LargeItems
		}
		f.workers[i] = newConnWorker(i, pref, f)
	}
	return f, nil
}

// Enqueue adds a job to the pending queue. It never blocks and may be
// called before or during a running fetch cycle, including from a
// job's completion callback.
func (f *Fetcher) Enqueue(job *Fetchable) {
	f.qmu.Lock()
	defer f.qmu.Unlock()
	f.queue.push(job)
	// Published under the lock so racing enqueues and allocations
	// cannot leave the gauge at a stale depth.
	metrics.QueueDepth.Set(float64(f.queue.len()))
}

// Fetch runs every pending job to completion, including jobs enqueued
// by completion callbacks while the cycle runs, and returns once all
// workers have drained. The first call starts the pool and waits for
// each worker's ready signal before any of them is told to begin;
// later calls reuse the pool and may be made repeatedly, an empty
// queue draining immediately.
//
// Cancelling ctx stops work allocation: jobs already executing finish,
// jobs still queued stay queued for a later call, and Fetch returns
// ctx.Err().
func (f *Fetcher) Fetch(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	opID := uuid.NewString()
	log := f.log.With("operation_id", opID)

	f.startWorkers(log)

	f.qmu.Lock()
	f.cycle = ctx
	queued := f.queue.len()
	f.qmu.Unlock()

	for _, w := range f.workers {
		w.begin <- struct{}{}
	}
	log.Info("fetch cycle started", "workers", len(f.workers), "queued", queued)

	drained := 0
	for drained < len(f.workers) {
		ev := <-f.events
		switch ev.kind {
		case evProgress:
			metrics.ProgressReports.Inc()
			f.sink.Report(ProgressReport{
				Job:         ev.job,
				WorkerIndex: ev.worker,
				BytesTotal:  ev.total,
				BytesNow:    ev.now,
			})
		case evDone:
			f.observeDone(log, ev)
		case evDrained:
			drained++
			log.Debug("worker drained", "worker", ev.worker)
		}
	}

	log.Info("fetch cycle finished")
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// startWorkers launches the pool once and completes the first half of
// the startup handshake: every worker has signalled ready before any
// of them receives begin.
func (f *Fetcher) startWorkers(log *slog.Logger) {
	if f.started {
		return
	}
	f.started = true
	f.wg.Add(len(f.workers))
	for _, w := range f.workers {
		go w.run()
	}
	for range f.workers {
		ev := <-f.events
		log.Debug("worker ready", "worker", ev.worker)
	}
}

// allocateWork hands one pending job to a worker. It is the only place
// jobs leave the queue; the queue mutex makes the empty-check and the
// pop a single atomic step, so no two workers can receive the same
// job. There is no rebalancing and no stealing beyond the preference
// split.
func (f *Fetcher) allocateWork(pref WorkerPreference) (*Fetchable, bool) {
	f.qmu.Lock()
	defer f.qmu.Unlock()
	if f.cycle != nil && f.cycle.Err() != nil {
		return nil, false
	}
	if f.queue.empty() {
		return nil, false
	}
	var job *Fetchable
	if pref == LargeItems {
		job = f.queue.popLargest()
	} else {
		job = f.queue.popSmallest()
	}
	metrics.QueueDepth.Set(float64(f.queue.len()))
	return job, true
}

func (f *Fetcher) observeDone(log *slog.Logger, ev workerEvent) {
	outcome := "ok"
	switch {
	case ev.result.Err != nil:
		outcome = "error"
		log.Error("job failed",
			"worker", ev.worker,
			"kind", ev.job.Kind.String(),
			"uri", ev.job.SourceURI,
			"domain", ev.result.Err.Domain.String(),
			"code", ev.result.Err.Code,
			"err", ev.result.Err,
		)
	case !ev.result.OK():
		outcome = "bad_status"
		log.Warn("job finished with non-OK status",
			"worker", ev.worker,
			"kind", ev.job.Kind.String(),
			"uri", ev.job.SourceURI,
			"status", ev.result.Status,
		)
	default:
		log.Info("job complete",
			"worker", ev.worker,
			"kind", ev.job.Kind.String(),
			"uri", ev.job.SourceURI,
			"path", ev.job.DestinationPath,
			"status", ev.result.Status,
		)
	}
	metrics.JobsTotal.WithLabelValues(ev.job.Kind.String(), outcome).Inc()
	metrics.JobDuration.WithLabelValues(ev.job.Kind.String()).Observe(ev.elapsed.Seconds())
}

// Close shuts the worker pool down and releases transports and shared
// state. It blocks until every worker goroutine has exited; workers
// only observe the signal between cycles, so nothing is interrupted
// mid-job. Close is idempotent and safe whether or not Fetch ever ran.
// It must be the last call on the engine.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.shutdown)
	f.wg.Wait()
	for _, w := range f.workers {
		w.client.CloseIdleConnections()
	}
	f.shared.close()
	f.log.Debug("fetcher closed", "workers", len(f.workers))
	return nil
}

// WorkerStatus is one worker's slot in a Stats snapshot.
type WorkerStatus struct {
	Index      int    `json:"index"`
	Preference string `json:"preference"`
	State      string `json:"state"`
}

// Stats is a point-in-time view of the engine, served by debug
// tooling.
type Stats struct {
	QueueDepth int            `json:"queueDepth"`
	Workers    []WorkerStatus `json:"workers"`
}

// Stats snapshots the queue depth and every worker's state. It is safe
// to call at any time from any goroutine.
func (f *Fetcher) Stats() Stats {
	f.qmu.Lock()
	depth := f.queue.len()
	f.qmu.Unlock()

	st := Stats{QueueDepth: depth, Workers: make([]WorkerStatus, len(f.workers))}
	for i, w := range f.workers {
		st.Workers[i] = WorkerStatus{
			Index:      w.index,
			Preference: w.pref.String(),
			State:      w.getState().String(),
		}
	}
	return st
}
