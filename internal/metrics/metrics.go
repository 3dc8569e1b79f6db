package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	EventsApplied   *prometheus.CounterVec
	EventsDropped   *prometheus.CounterVec
	SnapshotLoads   *prometheus.CounterVec
	OrdersTracked   prometheus.Gauge
	StreamConnected prometheus.Gauge
	StreamReconnect prometheus.Counter
	StreamFrames    prometheus.Counter
	CommandLatency  *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	applied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ordertrack_events_applied_total",
		Help: "Merges into the order collection by outcome.",
	}, []string{"outcome"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ordertrack_events_dropped_total",
		Help: "Stream frames or events dropped before merge.",
	}, []string{"reason"})
	snapshots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ordertrack_snapshot_loads_total",
		Help: "Snapshot loads by result.",
	}, []string{"result"})
	tracked := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ordertrack_orders_tracked",
		Help: "Orders currently held in the collection.",
	})
	connected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ordertrack_stream_connected",
		Help: "1 while the push stream is live.",
	})
	reconnects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ordertrack_stream_reconnects_total",
	})
	frames := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ordertrack_stream_frames_total",
	})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ordertrack_command_latency_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"command", "result"})

	r.MustRegister(applied, dropped, snapshots, tracked, connected, reconnects, frames, latency)
	return &Registry{
		reg:             r,
		EventsApplied:   applied,
		EventsDropped:   dropped,
		SnapshotLoads:   snapshots,
		OrdersTracked:   tracked,
		StreamConnected: connected,
		StreamReconnect: reconnects,
		StreamFrames:    frames,
		CommandLatency:  latency,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
