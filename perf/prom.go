package perf

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ProtocolCollector bundles the Prometheus metrics of a simulation run. A nil collector records nothing.
type ProtocolCollector struct {
	gatherer prometheus.Gatherer

	Packets        *prometheus.CounterVec
	RouterEvents   *prometheus.CounterVec
	BundlesSent    prometheus.Counter
	BytesSent      prometheus.Counter
	LocalizedNodes prometheus.Gauge
}

// NewProtocolCollector registers the protocol metrics against reg, defaulting to the global registry when nil.
func NewProtocolCollector(reg prometheus.Registerer) (*ProtocolCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	packets, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dvhop_packets_total",
		Help: "Control packets received, labeled by kind and dispatcher verdict.",
	}, []string{"kind", "verdict"}), "dvhop_packets_total")
	if err != nil {
		return nil, err
	}
	events, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dvhop_router_events_total",
		Help: "Router events, including solver outcomes, labeled by event.",
	}, []string{"event"}), "dvhop_router_events_total")
	if err != nil {
		return nil, err
	}
	bundles, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dvhop_bundles_sent_total",
		Help: "Bundles handed to the link layer.",
	}), "dvhop_bundles_sent_total")
	if err != nil {
		return nil, err
	}
	bytes, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dvhop_bytes_sent_total",
		Help: "Encoded bundle bytes handed to the link layer.",
	}), "dvhop_bytes_sent_total")
	if err != nil {
		return nil, err
	}
	localized, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dvhop_localized_nodes",
		Help: "Number of nodes that currently hold a position estimate.",
	}), "dvhop_localized_nodes")
	if err != nil {
		return nil, err
	}

	return &ProtocolCollector{
		gatherer:       gatherer,
		Packets:        packets,
		RouterEvents:   events,
		BundlesSent:    bundles,
		BytesSent:      bytes,
		LocalizedNodes: localized,
	}, nil
}

// Handler exposes the registry in the Prometheus text format.
func (c *ProtocolCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *ProtocolCollector) Packet(kind, verdict string) {
	if c == nil {
		return
	}
	c.Packets.WithLabelValues(kind, verdict).Inc()
}

func (c *ProtocolCollector) Event(event string) {
	if c == nil {
		return
	}
	c.RouterEvents.WithLabelValues(event).Inc()
}

func (c *ProtocolCollector) Bundle(size int) {
	if c == nil {
		return
	}
	c.BundlesSent.Inc()
	c.BytesSent.Add(float64(size))
}

// Localized moves the localized node gauge by delta.
func (c *ProtocolCollector) Localized(delta int) {
	if c == nil {
		return
	}
	c.LocalizedNodes.Add(float64(delta))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
