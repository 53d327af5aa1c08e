// Package metrics provides Prometheus metrics for the status LED pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "statuslight"

var (
	framesRendered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "status",
		Name:      "frames_rendered_total",
		Help:      "Frames pushed to the LED",
	})

	renderErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "status",
		Name:      "render_errors_total",
		Help:      "Frames that failed to reach the LED",
	})

	statusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "status",
		Name:      "changes_total",
		Help:      "Accepted status changes",
	}, []string{"status"})

	statusRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "status",
		Name:      "rejections_total",
		Help:      "Status requests rejected by the priority gate",
	}, []string{"status"})

	currentStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "status",
		Name:      "current",
		Help:      "1 for the displayed status, 0 otherwise",
	}, []string{"status"})

	globalBrightness = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "status",
		Name:      "global_brightness",
		Help:      "Global brightness 0-255",
	})

	transmitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "led",
		Name:      "transmit_duration_seconds",
		Help:      "Time to push one frame to the LED",
		Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	})

	syncEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "events_total",
		Help:      "Sync events by type and outcome (queued, rejected, dispatched, dropped, unhandled, discarded)",
	}, []string{"type", "outcome"})

	syncQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "queue_depth",
		Help:      "Events waiting in the sync queue",
	})
)

// RecordFrame records one successful frame and its transmit time.
func RecordFrame(d time.Duration) {
	framesRendered.Inc()
	transmitDuration.Observe(d.Seconds())
}

// RecordRenderError counts a failed frame.
func RecordRenderError() {
	renderErrors.Inc()
}

// RecordStatusChange counts an accepted change and marks status as current.
func RecordStatusChange(previous, status string) {
	statusChanges.WithLabelValues(status).Inc()
	if previous != "" {
		currentStatus.WithLabelValues(previous).Set(0)
	}
	currentStatus.WithLabelValues(status).Set(1)
}

// RecordStatusRejection counts a request lost to the priority gate.
func RecordStatusRejection(status string) {
	statusRejections.WithLabelValues(status).Inc()
}

// SetGlobalBrightness exports the global brightness.
func SetGlobalBrightness(b uint8) {
	globalBrightness.Set(float64(b))
}

// RecordSyncEvent counts a sync event outcome.
func RecordSyncEvent(eventType, outcome string) {
	syncEvents.WithLabelValues(eventType, outcome).Inc()
}

// SetSyncQueueDepth exports the number of queued sync events.
func SetSyncQueueDepth(n int) {
	syncQueueDepth.Set(float64(n))
}

// Handler returns the Prometheus scrape handler for every promauto metric.
func Handler() http.Handler {
	return promhttp.Handler()
}
