// Package obs exposes the viewfinder's runtime state as Prometheus
// metrics. A Manager owns a private registry: event-driven counters are
// fed from the bus, while capture and host state is sampled through
// callbacks at scrape time.
package obs

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/viewfinder/internal/capture"
	"github.com/smazurov/viewfinder/internal/events"
	"github.com/smazurov/viewfinder/internal/logging"
)

const namespace = "viewfinder"

// Manager owns the metric registry and the bus subscriptions feeding it.
type Manager struct {
	registry *prometheus.Registry
	log      *slog.Logger

	focusTransitions  *prometheus.CounterVec
	controlRejections *prometheus.CounterVec
	captureStops      *prometheus.CounterVec
	deviceEvents      *prometheus.CounterVec

	unsubscribe []func()
}

// NewManager builds a registry with runtime, process, and host
// collectors and subscribes the event-driven counters to bus. A nil
// bus leaves the counters registered but never incremented.
func NewManager(bus *events.Bus) *Manager {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)
	m := &Manager{
		registry: registry,
		log:      logging.GetLogger("obs"),
		focusTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "focus",
			Name:      "transitions_total",
			Help:      "Focus state machine transitions by destination state.",
		}, []string{"to"}),
		controlRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "controls",
			Name:      "rejections_total",
			Help:      "Sensor control writes rejected by the subdevice driver.",
		}, []string{"control"}),
		captureStops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capture",
			Name:      "stops_total",
			Help:      "Capture loop terminations by reason.",
		}, []string{"reason"}),
		deviceEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "devices",
			Name:      "events_total",
			Help:      "Capture device hotplug events by action.",
		}, []string{"action"}),
	}
	m.registerHostMetrics(factory)

	if bus != nil {
		m.unsubscribe = []func(){
			bus.Subscribe(func(e events.FocusChangedEvent) {
				m.focusTransitions.WithLabelValues(e.To).Inc()
			}),
			bus.Subscribe(func(e events.ControlRejectedEvent) {
				m.controlRejections.WithLabelValues(e.Control).Inc()
			}),
			bus.Subscribe(func(e events.CaptureStoppedEvent) {
				m.captureStops.WithLabelValues(e.Reason).Inc()
			}),
			bus.Subscribe(func(e events.DeviceDiscoveryEvent) {
				m.deviceEvents.WithLabelValues(e.Action).Inc()
			}),
		}
	}
	return m
}

// ObserveCapture registers scrape-time metrics backed by the session
// stats snapshot. Call it after Setup so the geometry labels on the
// info gauge carry the negotiated values, not the requested ones.
func (m *Manager) ObserveCapture(stats func() capture.Stats) {
	factory := promauto.With(m.registry)
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "frames_total",
		Help:      "Frames delivered to the renderer.",
	}, func() float64 { return float64(stats().Frames) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "streaming",
		Help:      "Whether the capture stream is on (1) or off (0).",
	}, func() float64 {
		if stats().Streaming {
			return 1
		}
		return 0
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "buffers",
		Help:      "Kernel buffers granted by the driver.",
	}, func() float64 { return float64(stats().Buffers) })

	s := stats()
	factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "info",
		Help:      "Capture session descriptors as labels, value fixed at 1.",
		ConstLabels: prometheus.Labels{
			"device":     s.DevicePath,
			"width":      strconv.FormatUint(uint64(s.Width), 10),
			"height":     strconv.FormatUint(uint64(s.Height), 10),
			"dma_export": strconv.FormatBool(s.DMAExport),
		},
	}).Set(1)
}

// ObserveRecording registers the frame counter for an active recorder
// and a usage gauge for the filesystem it writes into.
func (m *Manager) ObserveRecording(path string, frames func() uint64) {
	factory := promauto.With(m.registry)
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "recording",
		Name:        "frames_total",
		Help:        "Frames appended to the recording file.",
		ConstLabels: prometheus.Labels{"path": path},
	}, func() float64 { return float64(frames()) })
	m.registerRecordingDiskMetric(factory, path)
}

// Handler serves the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Close drops the bus subscriptions. The registry stays scrapeable.
func (m *Manager) Close() {
	for _, unsub := range m.unsubscribe {
		unsub()
	}
	m.unsubscribe = nil
}
