package fetcher

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/livingsilver94/serpentos-libmoss/internal/metrics"
)

// fetchFile streams job.SourceURI into the destination file. The file
// handle is released on every exit path before the worker asks for its
// next job, and a job that fails after creating the file removes it so
// a non-OK status or a broken stream never leaves a plausible-looking
// artifact behind.
func (w *connWorker) fetchFile(job *Fetchable) FetchResult {
	dst, err := w.createDestination(job)
	if err != nil {
		return FetchResult{Err: newFilesystemError(job.DestinationPath, err)}
	}
	keep := false
	defer func() {
		if cerr := dst.Close(); cerr != nil {
			w.log.Warn("close destination", "path", job.DestinationPath, "err", cerr)
		}
		if keep {
			return
		}
		if rerr := os.Remove(job.DestinationPath); rerr != nil {
			w.log.Warn("remove failed download", "path", job.DestinationPath, "err", rerr)
		}
	}()

	req, err := http.NewRequest(http.MethodGet, job.SourceURI, nil)
	if err != nil {
		return FetchResult{Err: newTransportError(job.SourceURI, err)}
	}
	req.Header.Set("User-Agent", w.ctrl.userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return FetchResult{Err: newTransportError(job.SourceURI, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// The body is an error page, not the requested content.
		return FetchResult{Status: resp.StatusCode}
	}

	total := job.ExpectedSize
	if resp.ContentLength > 0 {
		total = uint64(resp.ContentLength)
	}
	pw := &progressWriter{
		worker:   w,
		job:      job,
		total:    total,
		interval: w.ctrl.progressInterval,
	}
	if _, err := io.Copy(io.MultiWriter(dst, pw), resp.Body); err != nil {
		// Mid-stream failures, disk writes included, surface in the
		// transport domain with the source as context, matching the
		// status-or-transport shape callers branch on.
		return FetchResult{Err: newTransportError(job.SourceURI, err)}
	}
	pw.finish()
	metrics.BytesFetched.Add(float64(pw.now))
	keep = true
	return FetchResult{Status: resp.StatusCode}
}

// createDestination opens the file a job downloads into. Temporary
// jobs realize their final path here, before any network traffic, so
// every later report and the completion callback observe it.
func (w *connWorker) createDestination(job *Fetchable) (*os.File, error) {
	if job.Kind == KindTemporaryFile {
		dir, base := filepath.Split(job.DestinationPath)
		f, err := os.CreateTemp(dir, base+".*")
		if err != nil {
			return nil, err
		}
		job.DestinationPath = f.Name()
		return f, nil
	}
	return os.Create(job.DestinationPath)
}

// progressWriter counts bytes flowing into the destination and emits
// at most one report per interval. The terminal report is sent by
// finish, is exempt from throttling and always carries now == total.
type progressWriter struct {
	worker   *connWorker
	job      *Fetchable
	total    uint64
	now      uint64
	interval time.Duration
	last     time.Time
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.now += uint64(len(b))
	if p.now > p.total {
		p.total = p.now
	}
	if now := time.Now(); p.last.IsZero() || now.Sub(p.last) >= p.interval {
		p.last = now
		p.emit()
	}
	return len(b), nil
}

// finish trues the total up to the bytes actually written and emits
// the guaranteed terminal report.
func (p *progressWriter) finish() {
	p.total = p.now
	p.emit()
}

func (p *progressWriter) emit() {
	p.worker.events <- workerEvent{
		kind:   evProgress,
		worker: p.worker.index,
		job:    *p.job,
		total:  p.total,
		now:    p.now,
	}
}
