// Package metrics — счётчики воркера, отдаются на /metrics.
package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	TasksReceived       prometheus.Counter
	TasksCompleted      prometheus.Counter
	TasksSkipped        prometheus.Counter
	TasksFailed         prometheus.Counter
	FramesProcessed     prometheus.Counter
	DetectionsPersisted prometheus.Counter
	PersistFailures     prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TasksReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "watcher_tasks_received_total",
			Help: "Tasks consumed from the queue.",
		}),
		TasksCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "watcher_tasks_completed_total",
			Help: "Tasks that reached the completed state.",
		}),
		TasksSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "watcher_tasks_skipped_total",
			Help: "Tasks skipped for malformed payload or missing media.",
		}),
		TasksFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "watcher_tasks_failed_total",
			Help: "Tasks aborted by a decode or artifact failure.",
		}),
		FramesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "watcher_frames_processed_total",
			Help: "Frames run through the detector.",
		}),
		DetectionsPersisted: factory.NewCounter(prometheus.CounterOpts{
			Name: "watcher_detections_persisted_total",
			Help: "Detection rows committed to the store.",
		}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "watcher_persist_failures_total",
			Help: "Frame batches that failed to commit.",
		}),
	}
}

// Serve поднимает /metrics на отдельном адресе, блокирует горутину.
func Serve(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("Metrics server stopped: %v", err)
	}
}
