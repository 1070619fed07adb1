package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for a filter run.
// Collectors live on a private registry so that several instances can
// coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// Classification metrics
	PacketsClassified prometheus.Counter
	VoiceFlags        prometheus.Counter
	ClassifyTime      prometheus.Histogram
	PeakMagnitude     prometheus.Histogram

	// Emission metrics
	PacketsEmitted *prometheus.CounterVec
	BytesWritten   prometheus.Counter

	// Run metrics
	FilesProcessed *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	LastRunTime    prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		PacketsClassified: factory.NewCounter(prometheus.CounterOpts{
			Name: "vad_packets_classified_total",
			Help: "Total number of packets run through the spectral classifier",
		}),
		VoiceFlags: factory.NewCounter(prometheus.CounterOpts{
			Name: "vad_voice_flags_total",
			Help: "Total number of packets whose own spectrum was inside the voice band",
		}),
		ClassifyTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vad_classify_duration_seconds",
			Help:    "Time spent transforming and classifying one packet",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 16), // 1us to ~33ms
		}),
		PeakMagnitude: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vad_peak_magnitude",
			Help:    "Peak spectral magnitude per packet",
			Buckets: prometheus.ExponentialBuckets(50, 2, 12), // 50 to ~100k
		}),

		PacketsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vad_packets_emitted_total",
			Help: "Total number of packets written, by decision",
		}, []string{"decision"}),
		BytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "vad_bytes_written_total",
			Help: "Total number of sample bytes written",
		}),

		FilesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vad_files_processed_total",
			Help: "Total number of input files processed, by outcome",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vad_run_duration_seconds",
			Help:    "Wall time of one file run",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~33s
		}),
		LastRunTime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vad_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run",
		}),
	}
}

// RecordClassification records one classifier call
func (m *Metrics) RecordClassification(voiced bool, magnitude float64, seconds float64) {
	m.PacketsClassified.Inc()
	if voiced {
		m.VoiceFlags.Inc()
	}
	m.ClassifyTime.Observe(seconds)
	m.PeakMagnitude.Observe(magnitude)
}

// RecordEmission records one written packet
func (m *Metrics) RecordEmission(voiced bool, bytes int) {
	decision := "silence"
	if voiced {
		decision = "voice"
	}
	m.PacketsEmitted.WithLabelValues(decision).Inc()
	m.BytesWritten.Add(float64(bytes))
}

// RecordRun records the outcome of processing one file
func (m *Metrics) RecordRun(err error, elapsed time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.FilesProcessed.WithLabelValues(status).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
	m.LastRunTime.SetToCurrentTime()
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}
