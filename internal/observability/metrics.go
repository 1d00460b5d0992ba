package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MirrorMetrics holds the counters for one variantctl process. Each build
// step is a short-lived process, so the registry is private and flushed to
// a node_exporter textfile instead of being scraped.
type MirrorMetrics struct {
	registry    *prometheus.Registry
	files       *prometheus.CounterVec
	bytesCopied *prometheus.CounterVec
	duration    *prometheus.GaugeVec
	lastSuccess *prometheus.GaugeVec
}

func NewMirrorMetrics() *MirrorMetrics {
	m := &MirrorMetrics{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "variantctl",
				Subsystem: "mirror",
				Name:      "files_total",
				Help:      "Files visited by the variant mirror, by result.",
			},
			[]string{"variant", "result"},
		),
		bytesCopied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "variantctl",
				Subsystem: "mirror",
				Name:      "bytes_copied_total",
				Help:      "Bytes written into the framework package.",
			},
			[]string{"variant"},
		),
		duration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "variantctl",
				Subsystem: "mirror",
				Name:      "duration_seconds",
				Help:      "Wall time of the last variant mirror.",
			},
			[]string{"variant"},
		),
		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "variantctl",
				Subsystem: "mirror",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful variant mirror.",
			},
			[]string{"variant"},
		),
	}
	m.registry.MustRegister(m.files, m.bytesCopied, m.duration, m.lastSuccess)
	return m
}

func (m *MirrorMetrics) RecordMirror(variant string, copied, skipped int, bytes int64, took time.Duration, ok bool, at time.Time) {
	m.files.WithLabelValues(variant, "copied").Add(float64(copied))
	m.files.WithLabelValues(variant, "skipped").Add(float64(skipped))
	m.bytesCopied.WithLabelValues(variant).Add(float64(bytes))
	m.duration.WithLabelValues(variant).Set(took.Seconds())
	if ok {
		m.lastSuccess.WithLabelValues(variant).Set(float64(at.Unix()))
	}
}

func (m *MirrorMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile atomically writes the metrics in text exposition format.
func (m *MirrorMetrics) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("metrics textfile dir: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("metrics textfile: %w", err)
	}
	return nil
}
