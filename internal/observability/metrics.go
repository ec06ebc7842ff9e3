package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageDuration times each step of a registration or recognition request.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faceattend",
		Name:      "stage_duration_seconds",
		Help:      "Duration of decode, detect, extract, match and store stages",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"stage"})

	FacesDetected = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "faceattend",
		Name:      "faces_per_image",
		Help:      "Number of faces the detector returned per image",
		Buckets:   []float64{0, 1, 2, 3, 5, 10},
	})

	RecognitionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceattend",
		Name:      "recognition_outcomes_total",
		Help:      "Recognition results by outcome",
	}, []string{"outcome"})

	MatchDistance = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "faceattend",
		Name:      "match_distance",
		Help:      "Best-candidate Euclidean distance per query",
		Buckets:   prometheus.LinearBuckets(0.25, 0.25, 16),
	})

	AttendanceEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceattend",
		Name:      "attendance_events_total",
		Help:      "Recorded attendance events by direction and source",
	}, []string{"direction", "source"})

	AttendanceConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "faceattend",
		Name:      "attendance_conflicts_total",
		Help:      "Concurrent attendance writes that had to be retried",
	})

	GallerySize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "faceattend",
		Name:      "gallery_size",
		Help:      "Number of enrolled descriptors seen by the last query",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faceattend",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "faceattend",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
