// Package metrics exposes recorder activity in the Prometheus text format.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"micrec/audio"
	"micrec/recorder"
)

const namespace = "micrec"

type Metrics struct {
	reg           *prometheus.Registry
	clips         prometheus.Counter
	clipBytes     prometheus.Counter
	clipSeconds   prometheus.Histogram
	startFailures *prometheus.CounterVec
}

// New builds a registry with the Go runtime collectors plus gauges read
// from recording and devices at scrape time.
func New(recording func() bool, devices func() int) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		clips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clips_total",
			Help:      "Finished recordings.",
		}),
		clipBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captured_bytes_total",
			Help:      "PCM bytes across all finished recordings.",
		}),
		clipSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "clip_duration_seconds",
			Help:      "Audio length of finished recordings.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 300},
		}),
		startFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "start_failures_total",
			Help:      "Start attempts the host refused, by reason.",
		}, []string{"reason"}),
	}

	promRecording := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "recording",
		Help:      "1 while a capture session is live.",
	}, func() float64 {
		if recording() {
			return 1
		}
		return 0
	})
	promDevices := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "input_devices",
		Help:      "Input devices from the last enumeration.",
	}, func() float64 { return float64(devices()) })

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.clips, m.clipBytes, m.clipSeconds, m.startFailures,
		promRecording, promDevices,
	)
	return m
}

func (m *Metrics) ObserveClip(bytes int, d time.Duration) {
	m.clips.Inc()
	m.clipBytes.Add(float64(bytes))
	m.clipSeconds.Observe(d.Seconds())
}

func (m *Metrics) StartFailed(err error) {
	m.startFailures.WithLabelValues(Reason(err)).Inc()
}

// Reason buckets a Start error into a fixed label value.
func Reason(err error) string {
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, audio.ErrDeviceNotFound):
		return "device_not_found"
	case errors.Is(err, audio.ErrUnsupportedConstraint):
		return "unsupported_constraint"
	case errors.Is(err, recorder.ErrAlreadyRecording):
		return "already_recording"
	default:
		return "other"
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
