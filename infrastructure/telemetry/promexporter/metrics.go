package promexporter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tunlink"

// Metrics aggregates the engine-level prometheus collectors. A nil
// *Metrics is valid and turns every method into a no-op so handlers can
// run without an exporter.
type Metrics struct {
	registry *prometheus.Registry

	datagramsRX  prometheus.Counter
	datagramsTX  prometheus.Counter
	bytesRX      prometheus.Counter
	bytesTX      prometheus.Counter
	dropped      prometheus.Counter
	authFailures prometheus.Counter
	evictions    prometheus.Counter
}

// New builds a Metrics set backed by a private registry. sessionLen is
// sampled on scrape for the active-sessions gauge.
func New(sessionLen func() float64) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		datagramsRX: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "datagrams_received_total",
			Help: "Datagrams read from the UDP socket",
		}),
		datagramsTX: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "datagrams_sent_total",
			Help: "Datagrams written to the UDP socket",
		}),
		bytesRX: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "bytes_received_total",
			Help: "Payload bytes delivered to the TUN device",
		}),
		bytesTX: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "bytes_sent_total",
			Help: "Payload bytes read from the TUN device",
		}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "datagrams_dropped_total",
			Help: "Datagrams dropped as malformed, unauthenticated or undecodable",
		}),
		authFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sessions", Name: "auth_failures_total",
			Help: "Rejected authentication attempts",
		}),
		evictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sessions", Name: "evicted_total",
			Help: "Sessions removed by the liveness sweeper",
		}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "sessions", Name: "active",
		Help: "Currently tracked sessions",
	}, sessionLen)

	return m
}

func (m *Metrics) DatagramReceived() {
	if m != nil {
		m.datagramsRX.Inc()
	}
}

func (m *Metrics) DatagramSent() {
	if m != nil {
		m.datagramsTX.Inc()
	}
}

func (m *Metrics) BytesReceived(n int) {
	if m != nil {
		m.bytesRX.Add(float64(n))
	}
}

func (m *Metrics) BytesSent(n int) {
	if m != nil {
		m.bytesTX.Add(float64(n))
	}
}

func (m *Metrics) DatagramDropped() {
	if m != nil {
		m.dropped.Inc()
	}
}

func (m *Metrics) AuthFailure() {
	if m != nil {
		m.authFailures.Inc()
	}
}

func (m *Metrics) SessionEvicted() {
	if m != nil {
		m.evictions.Inc()
	}
}
