package fetcher

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
)

// fetchGit clones job.SourceURI, or runs an incremental fetch when the
// destination already exists. The git client yields no usable byte
// counts, so success reports a single 100-of-100 progress sample. A
// zero exit synthesizes status 200; any other exit code is surfaced
// raw so non-200 means failure for every job kind alike.
func (w *connWorker) fetchGit(job *Fetchable) FetchResult {
	parent := filepath.Dir(job.DestinationPath)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return FetchResult{Err: newFilesystemError(parent, err)}
	}

	// Jobs are not cancellable mid-flight; the subprocess always runs
	// to completion or natural failure.
	ctx := context.Background()

	var (
		code int
		err  error
	)
	if _, statErr := os.Stat(job.DestinationPath); statErr == nil {
		code, err = w.ctrl.git.FetchRemote(ctx, job.DestinationPath)
	} else {
		mirror := job.Kind == KindGitRepositoryMirror
		code, err = w.ctrl.git.Clone(ctx, job.SourceURI, job.DestinationPath, mirror)
	}
	if err != nil {
		// The subprocess never ran, so there is no exit code to map.
		return FetchResult{Err: newTransportError(job.SourceURI, err)}
	}

	status := code
	if code == 0 {
		status = http.StatusOK
		w.events <- workerEvent{
			kind:   evProgress,
			worker: w.index,
			job:    *job,
			total:  100,
			now:    100,
		}
	}
	return FetchResult{Status: status}
}
