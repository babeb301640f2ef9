package fetcher

// ProgressReport is a throttled snapshot of one job's transfer state.
//
// Reports for a single job arrive in order with BytesNow never
// decreasing. The only volume guarantee is the terminal report, which
// always carries BytesNow == BytesTotal; intermediate reports are
// rate-limited to the Fetcher's progress interval.
type ProgressReport struct {
	// Job is a copy of the job as it looked when the report was
	// emitted, after any temporary-path rewrite.
	Job Fetchable
	// WorkerIndex identifies the worker executing the job.
	WorkerIndex int
	// BytesTotal is the transfer size baseline: the announced content
	// length when available, the job's ExpectedSize otherwise. The
	// terminal report trues it up to the bytes actually written.
	BytesTotal uint64
	// BytesNow is the byte count written so far.
	BytesNow uint64
}

// ProgressSink receives progress updates. Report is invoked from the
// goroutine running Fetch; a sink that blocks stalls result and
// progress handling for the whole cycle.
type ProgressSink interface {
	Report(ProgressReport)
}

// ChanSink writes reports to a channel.
type ChanSink struct {
	ch chan<- ProgressReport
}

func NewChanSink(ch chan<- ProgressReport) *ChanSink { return &ChanSink{ch: ch} }

func (s *ChanSink) Report(r ProgressReport) {
	if s == nil {
		return
	}
	s.ch <- r
}

// nopSink is the default when no sink is configured.
type nopSink struct{}

func (nopSink) Report(ProgressReport) {}
