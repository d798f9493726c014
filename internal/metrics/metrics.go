package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upload outcomes used as the "result" label.
const (
	ResultStored  = "stored"
	ResultIgnored = "ignored"
	ResultFailed  = "failed"
)

type Metrics struct {
	Uploads           *prometheus.CounterVec
	BytesWritten      prometheus.Counter
	ThumbnailDuration prometheus.Histogram
	NameCollisions    prometheus.Counter
	MirrorFailures    prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the upload metrics on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "img_upload",
			Name:      "uploads_total",
			Help:      "Upload requests by result.",
		}, []string{"result"}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "img_upload",
			Name:      "bytes_written_total",
			Help:      "Bytes written for originals and thumbnails.",
		}),
		ThumbnailDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "img_upload",
			Name:      "thumbnail_duration_seconds",
			Help:      "Time spent decoding, resizing and encoding thumbnails.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		NameCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "img_upload",
			Name:      "name_collisions_total",
			Help:      "Exclusive creates that lost a race and were re-resolved.",
		}),
		MirrorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "img_upload",
			Name:      "mirror_failures_total",
			Help:      "Files that could not be copied to the S3 mirror.",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.Uploads,
		m.BytesWritten,
		m.ThumbnailDuration,
		m.NameCollisions,
		m.MirrorFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
