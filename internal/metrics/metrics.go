package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moss",
			Subsystem: "fetcher",
			Name:      "jobs_total",
			Help:      "Count of fetch jobs completed, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "moss",
			Subsystem: "fetcher",
			Name:      "job_duration_seconds",
			Help:      "Time spent executing fetch jobs.",
		},
		[]string{"kind"},
	)

	BytesFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "moss",
			Subsystem: "fetcher",
			Name:      "bytes_fetched_total",
			Help:      "Bytes written to destination files.",
		},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "moss",
			Subsystem: "fetcher",
			Name:      "queue_depth",
			Help:      "Jobs waiting in the fetch queue.",
		},
	)

	WorkersBusy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "moss",
			Subsystem: "fetcher",
			Name:      "workers_busy",
			Help:      "Workers currently executing a job.",
		},
	)

	ProgressReports = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "moss",
			Subsystem: "fetcher",
			Name:      "progress_reports_total",
			Help:      "Progress updates delivered to the sink.",
		},
	)
)

// Register registers the moss fetch metrics into the default registry.
func Register() {
	prometheus.MustRegister(JobsTotal, JobDuration, BytesFetched, QueueDepth, WorkersBusy, ProgressReports)
}
