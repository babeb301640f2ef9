// moss-fetch drives the fetch engine from a YAML job manifest: it
// enqueues every manifest entry, runs one fetch cycle and reports
// per-job outcomes through the log. An optional debug listener exposes
// health, engine stats, Prometheus metrics and a live progress stream.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/livingsilver94/serpentos-libmoss/fetcher"
	"github.com/livingsilver94/serpentos-libmoss/internal/config"
	"github.com/livingsilver94/serpentos-libmoss/internal/metrics"
	"github.com/livingsilver94/serpentos-libmoss/internal/router"
	"github.com/livingsilver94/serpentos-libmoss/internal/stream"
)

// Exit codes
const (
	exitOK         = 0
	exitRunError   = 1
	exitUsageError = 2
	exitJobsFailed = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("moss-fetch", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML config file")
	manifestPath := flags.String("manifest", "", "path to the YAML job manifest (required)")
	workers := flags.Int("workers", 0, "worker pool size, 0 picks one per CPU minus one")
	userAgent := flags.String("user-agent", "", "User-Agent header for HTTP fetches")
	listen := flags.String("listen", "", "address for the debug listener, empty disables it")
	logFile := flags.String("log-file", "", "log to this rotated file instead of stdout")
	logLevel := flags.String("log-level", "", "log level: debug, info, warn or error")
	progressInterval := flags.Duration("progress-interval", 0, "minimum spacing between progress reports per job")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsageError
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, "moss-fetch:", err)
			return exitUsageError
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "moss-fetch:", err)
		return exitUsageError
	}
	// Flags beat environment beats file beats defaults.
	if flags.Changed("workers") {
		cfg.Workers = *workers
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = *userAgent
	}
	if flags.Changed("listen") {
		cfg.Listen = *listen
	}
	if flags.Changed("log-file") {
		cfg.LogFile = *logFile
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}
	if flags.Changed("progress-interval") {
		cfg.ProgressInterval = *progressInterval
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "moss-fetch:", err)
		return exitUsageError
	}
	if *manifestPath == "" {
		fmt.Fprintln(os.Stderr, "moss-fetch: --manifest is required")
		flags.Usage()
		return exitUsageError
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	manifest, err := config.LoadManifest(*manifestPath)
	if err != nil {
		logger.Error("load manifest", "path", *manifestPath, "err", err)
		return exitUsageError
	}
	if n := manifest.Dedupe(); n > 0 {
		logger.Info("dropped duplicate manifest entries", "count", n)
	}

	metrics.Register()

	// The progress stream only runs when the debug listener does;
	// without a consumer a channel sink would stall the cycle.
	var (
		hub    *stream.Hub
		progCh chan fetcher.ProgressReport
	)
	opts := []fetcher.Option{
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithProgressInterval(cfg.ProgressInterval),
		fetcher.WithDNSCacheTTL(cfg.DNSCacheTTL),
		fetcher.WithGitPath(cfg.GitPath),
		fetcher.WithLogger(logger),
	}
	if cfg.Workers > 0 {
		opts = append(opts, fetcher.WithWorkers(cfg.Workers))
	}
	if cfg.Listen != "" {
		hub = stream.NewHub(logger)
		progCh = make(chan fetcher.ProgressReport, 64)
		opts = append(opts, fetcher.WithProgressSink(fetcher.NewChanSink(progCh)))
	}

	engine, err := fetcher.New(opts...)
	if err != nil {
		logger.Error("build fetch engine", "err", err)
		return exitRunError
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("close fetch engine", "err", err)
		}
	}()

	failed := enqueueJobs(logger, engine, manifest)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, _ := errgroup.WithContext(ctx)
	var srv *http.Server
	if cfg.Listen != "" {
		srv = &http.Server{
			Addr:    cfg.Listen,
			Handler: router.New(logger, engine, hub, cfg.Token),
		}
		g.Go(func() error {
			logger.Info("debug listener up", "addr", cfg.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("debug listener: %w", err)
			}
			return nil
		})
		go hub.Run(progCh)
	}
	g.Go(func() error {
		err := engine.Fetch(ctx)
		if srv != nil {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if serr := srv.Shutdown(sctx); serr != nil {
				logger.Error("shut debug listener down", "err", serr)
			}
		}
		return err
	})

	runErr := g.Wait()
	if hub != nil {
		close(progCh)
		hub.Close()
	}

	switch {
	case runErr != nil:
		logger.Error("fetch run failed", "err", runErr)
		return exitRunError
	case failed.Load() > 0:
		logger.Error("some jobs failed", "count", failed.Load())
		return exitJobsFailed
	}
	return exitOK
}

// enqueueJobs turns manifest entries into engine jobs, applying each
// entry's on_exists policy before it is enqueued. The returned counter
// is bumped by the completion callbacks as jobs finish badly.
func enqueueJobs(logger *slog.Logger, engine *fetcher.Fetcher, manifest *config.Manifest) *atomic.Int64 {
	failed := new(atomic.Int64)
	for _, entry := range manifest.Jobs {
		kind, _ := fetcher.ParseKind(entry.Kind)
		policy, _ := config.ParseExistsPolicy(entry.OnExists)

		// Repository kinds handle an existing destination themselves
		// with an incremental fetch; the policy covers file kinds.
		if kind == fetcher.KindRegularFile || kind == fetcher.KindTemporaryFile {
			if _, err := os.Stat(entry.Dest); err == nil {
				switch policy {
				case config.ExistsSkip:
					logger.Info("destination exists, skipping", "path", entry.Dest, "uri", entry.URI)
					continue
				case config.ExistsError:
					logger.Error("destination exists", "path", entry.Dest, "uri", entry.URI)
					failed.Add(1)
					continue
				}
			}
		}

		engine.Enqueue(&fetcher.Fetchable{
			SourceURI:       entry.URI,
			DestinationPath: entry.Dest,
			ExpectedSize:    entry.Size,
			Kind:            kind,
			OnComplete: func(job *fetcher.Fetchable, res fetcher.FetchResult) {
				if !res.OK() {
					failed.Add(1)
				}
			},
		})
	}
	return failed
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogFile != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		return slog.New(slog.NewJSONHandler(rotated, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
}
