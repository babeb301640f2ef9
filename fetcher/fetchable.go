package fetcher

import "fmt"

// Kind selects how a Fetchable is retrieved and written to disk.
type Kind int

const (
	// KindRegularFile downloads SourceURI into a file created at
	// DestinationPath.
	KindRegularFile Kind = iota
	// KindTemporaryFile downloads into a uniquely named file created
	// next to DestinationPath. The realized path is written back to
	// the job before its callback runs.
	KindTemporaryFile
	// KindGitRepository clones SourceURI into DestinationPath, or runs
	// an incremental fetch when a clone is already present.
	KindGitRepository
	// KindGitRepositoryMirror is KindGitRepository with a mirror clone.
	KindGitRepositoryMirror
)

func (k Kind) String() string {
	switch k {
	case KindRegularFile:
		return "regular"
	case KindTemporaryFile:
		return "temporary"
	case KindGitRepository:
		return "git"
	case KindGitRepositoryMirror:
		return "git-mirror"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a kind name as used in manifests and logs back to
// a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "regular":
		return KindRegularFile, nil
	case "temporary":
		return KindTemporaryFile, nil
	case "git":
		return KindGitRepository, nil
	case "git-mirror":
		return KindGitRepositoryMirror, nil
	}
	return 0, fmt.Errorf("unknown fetchable kind %q", s)
}

// Fetchable describes one download or clone job.
//
// A Fetchable is enqueued by the caller and handed to exactly one
// worker, which owns it until its completion callback returns. Only
// DestinationPath is mutated during execution, and only for
// KindTemporaryFile jobs.
type Fetchable struct {
	// SourceURI is where the job fetches from. HTTP(S) for file kinds,
	// anything the git client accepts for repository kinds.
	SourceURI string

	// DestinationPath is where the job lands. For KindTemporaryFile it
	// is a placeholder whose directory and base name seed the realized
	// temporary path.
	DestinationPath string

	// ExpectedSize orders the job in the queue and seeds the progress
	// baseline when the server does not announce a length. It reserves
	// nothing.
	ExpectedSize uint64

	// Kind selects the execution strategy.
	Kind Kind

	// OnComplete, when non-nil, runs exactly once on the goroutine of
	// the worker that executed the job, after any path rewrite and
	// before the next job is requested. Enqueueing further jobs from
	// the callback is allowed.
	OnComplete func(*Fetchable, FetchResult)
}

// WorkerPreference is the static queue bias assigned to a worker when
// the pool is built.
type WorkerPreference int

const (
	// SmallItems drains the queue smallest-first.
	SmallItems WorkerPreference = iota
	// LargeItems drains the queue largest-first. Exactly one worker,
	// index 0, carries this preference so a large transfer is never
	// starved behind a stream of small ones.
	LargeItems
)

func (p WorkerPreference) String() string {
	switch p {
	case SmallItems:
		return "small"
	case LargeItems:
		return "large"
	default:
		return fmt.Sprintf("preference(%d)", int(p))
	}
}
