package node

import (
	"net/http"
	"time"

	"github.com/fzft/go-openset/db"
	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records command and connection statistics. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	commands *prom.CounterVec
	duration *prom.HistogramVec
	clients  prom.Gauge
}

// NewMetrics constructs and registers the server metrics on reg.
func NewMetrics(reg prom.Registerer, rdb *db.RedisDb) *Metrics {
	m := &Metrics{
		commands: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "openset",
			Name:      "commands_total",
			Help:      "Commands processed by name and result",
		}, []string{"command", "result"}),
		duration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "openset",
			Name:      "command_duration_seconds",
			Help:      "Time spent executing commands",
			Buckets:   prom.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"command"}),
		clients: prom.NewGauge(prom.GaugeOpts{
			Namespace: "openset",
			Name:      "connected_clients",
			Help:      "Number of client connections",
		}),
	}
	keys := prom.NewGaugeFunc(prom.GaugeOpts{
		Namespace: "openset",
		Name:      "keys",
		Help:      "Number of keys in the keyspace",
	}, func() float64 { return float64(rdb.Len()) })

	reg.MustRegister(m.commands, m.duration, m.clients, keys)
	return m
}

func (m *Metrics) ObserveCommand(command, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, result).Inc()
	if result != "rejected" {
		m.duration.WithLabelValues(command).Observe(d.Seconds())
	}
}

func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.clients.Inc()
}

func (m *Metrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.clients.Dec()
}

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
