package fetcher

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

const (
	// DefaultUserAgent is sent with every HTTP request unless
	// overridden by WithUserAgent.
	DefaultUserAgent = "libmoss/0.1"
	// DefaultProgressInterval is the minimum spacing between two
	// non-terminal progress reports for one job.
	DefaultProgressInterval = 100 * time.Millisecond

	defaultDNSTTL = time.Minute
)

// Options configures a Fetcher.
type Options struct {
	Workers          int
	UserAgent        string
	ProgressInterval time.Duration
	Sink             ProgressSink
	Logger           *slog.Logger
	GitPath          string
	DNSCacheTTL      time.Duration
}

// Option is a functional option for configuring a Fetcher.
type Option func(*Options)

// WithWorkers sets the worker pool size. The default is one less than
// the number of CPUs, floored at one.
func WithWorkers(n int) Option {
	return func(o *Options) {
		o.Workers = n
	}
}

// WithUserAgent sets the User-Agent header sent on HTTP fetches.
func WithUserAgent(ua string) Option {
	return func(o *Options) {
		o.UserAgent = ua
	}
}

// WithProgressInterval sets the minimum spacing between non-terminal
// progress reports for one job.
func WithProgressInterval(d time.Duration) Option {
	return func(o *Options) {
		o.ProgressInterval = d
	}
}

// WithProgressSink routes progress reports to sink. A nil sink
// discards them.
func WithProgressSink(sink ProgressSink) Option {
	return func(o *Options) {
		o.Sink = sink
	}
}

// WithLogger sets the logger the engine and its workers log through.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithGitPath sets the git executable used for repository jobs. The
// default resolves "git" through PATH.
func WithGitPath(path string) Option {
	return func(o *Options) {
		o.GitPath = path
	}
}

// WithDNSCacheTTL sets how long shared DNS resolutions stay valid.
func WithDNSCacheTTL(d time.Duration) Option {
	return func(o *Options) {
		o.DNSCacheTTL = d
	}
}

func defaultOptions() Options {
	workers := runtime.NumCPU() - 1
	if workers < 1 {
		workers = 1
	}
	return Options{
		Workers:          workers,
		UserAgent:        DefaultUserAgent,
		ProgressInterval: DefaultProgressInterval,
		Sink:             nopSink{},
		Logger:           slog.Default(),
		GitPath:          "git",
		DNSCacheTTL:      defaultDNSTTL,
	}
}

func (o *Options) validate() error {
	if o.Workers < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", o.Workers)
	}
	if o.UserAgent == "" {
		return fmt.Errorf("user agent must not be empty")
	}
	if o.ProgressInterval <= 0 {
		return fmt.Errorf("progress interval must be positive, got %v", o.ProgressInterval)
	}
	if o.GitPath == "" {
		return fmt.Errorf("git path must not be empty")
	}
	if o.DNSCacheTTL <= 0 {
		return fmt.Errorf("dns cache ttl must be positive, got %v", o.DNSCacheTTL)
	}
	return nil
}
