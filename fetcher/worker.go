package fetcher

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/livingsilver94/serpentos-libmoss/internal/metrics"
)

// workerState tracks where a worker is in its lifecycle.
type workerState int32

const (
	stateCreated workerState = iota
	stateStarted
	stateIdle
	stateExecuting
	stateDraining
	stateClosed
)

func (s workerState) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateStarted:
		return "started"
	case stateIdle:
		return "idle"
	case stateExecuting:
		return "executing"
	case stateDraining:
		return "draining"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// eventKind discriminates messages on the worker-to-controller channel.
type eventKind int

const (
	evReady eventKind = iota
	evProgress
	evDone
	evDrained
)

// workerEvent is one message from a worker to the controller. A single
// channel carries every kind so the controller observes each worker's
// messages in the order that worker sent them.
type workerEvent struct {
	kind    eventKind
	worker  int
	job     Fetchable
	result  FetchResult
	elapsed time.Duration
	total   uint64
	now     uint64
}

// connWorker owns one persistent HTTP client and executes jobs handed
// out by its controller, one at a time, on a dedicated goroutine.
type connWorker struct {
	index int
	pref  WorkerPreference
	ctrl  *Fetcher
	log   *slog.Logger

	// client wraps the worker's transport. It lives as long as the
	// worker so keep-alive connections survive from job to job.
	client *http.Client

	begin    chan struct{}
	events   chan<- workerEvent
	shutdown <-chan struct{}

	state atomic.Int32
}

func newConnWorker(index int, pref WorkerPreference, f *Fetcher) *connWorker {
	return &connWorker{
		index:    index,
		pref:     pref,
		ctrl:     f,
		log:      f.log.With("worker", index),
		client:   &http.Client{Transport: f.shared.transport(index)},
		begin:    make(chan struct{}),
		events:   f.events,
		shutdown: f.shutdown,
	}
}

func (w *connWorker) setState(s workerState) { w.state.Store(int32(s)) }

func (w *connWorker) getState() workerState { return workerState(w.state.Load()) }

// run is the worker goroutine. It announces readiness once, then
// alternates between fetch cycles and waiting until shutdown. The
// shutdown signal is only consulted between cycles, never mid-job, so
// an in-flight transfer always finishes before the worker exits.
func (w *connWorker) run() {
	defer w.ctrl.wg.Done()
	w.setState(stateStarted)
	w.events <- workerEvent{kind: evReady, worker: w.index}
	for {
		select {
		case <-w.begin:
			w.workLoop()
			w.events <- workerEvent{kind: evDrained, worker: w.index}
		case <-w.shutdown:
			w.setState(stateClosed)
			return
		}
	}
}

// workLoop pulls allocations matching this worker's preference until
// the controller has nothing left to hand out.
func (w *connWorker) workLoop() {
	for {
		w.setState(stateIdle)
		job, ok := w.ctrl.allocateWork(w.pref)
		if !ok {
			w.setState(stateDraining)
			return
		}
		w.setState(stateExecuting)
		metrics.WorkersBusy.Inc()
		start := time.Now()
		res := w.execute(job)
		elapsed := time.Since(start)
		metrics.WorkersBusy.Dec()
		if job.OnComplete != nil {
			job.OnComplete(job, res)
		}
		w.events <- workerEvent{
			kind:    evDone,
			worker:  w.index,
			job:     *job,
			result:  res,
			elapsed: elapsed,
		}
	}
}

func (w *connWorker) execute(job *Fetchable) FetchResult {
	w.log.Debug("executing job",
		"kind", job.Kind.String(),
		"uri", job.SourceURI,
		"path", job.DestinationPath,
		"expected_size", job.ExpectedSize,
	)
	switch job.Kind {
	case KindRegularFile, KindTemporaryFile:
		return w.fetchFile(job)
	case KindGitRepository, KindGitRepositoryMirror:
		return w.fetchGit(job)
	default:
		return FetchResult{Err: &FetchError{
			Domain:  DomainFilesystem,
			Context: job.DestinationPath,
			Cause:   fmt.Errorf("unknown fetchable kind %d", int(job.Kind)),
		}}
	}
}
