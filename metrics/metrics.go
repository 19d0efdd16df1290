// Package metrics registers the watcher's sole observability surface: a
// block_height gauge the indexer updates as it catches the persistent
// store up with on-chain events.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the gauges the watcher agent exposes.
type Metrics struct {
	BlockHeight *prometheus.GaugeVec
}

// New registers block_height{network,agent} on reg and returns a handle
// to it. Registering the same metric twice against the same registry is a
// caller bug, not something this constructor tries to paper over.
func New(reg *prometheus.Registry) (*Metrics, error) {
	blockHeight := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "block_height",
		Help: "Height of a recently observed block",
	}, []string{"network", "agent"})

	if err := reg.Register(blockHeight); err != nil {
		return nil, err
	}

	return &Metrics{BlockHeight: blockHeight}, nil
}

// For returns the gauge pre-labeled for the given network, under the
// "watcher" agent label every instance of this agent reports under.
func (m *Metrics) For(network string) prometheus.Gauge {
	return m.BlockHeight.WithLabelValues(network, "watcher")
}
