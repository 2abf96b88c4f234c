package chain

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics of chain readers. One Metrics may be
// shared by many readers.
type Metrics struct {
	Positions         prometheus.Counter
	PositionErrors    *prometheus.CounterVec
	PartitionSwitches prometheus.Counter
	OwnedBuffers      prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	positions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jchain_reader_positions_total",
		Help: "Total successful cursor positionings",
	})

	positionErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jchain_reader_position_errors_total",
		Help: "Total failed cursor positionings by kind",
	}, []string{"kind"})

	partitionSwitches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jchain_reader_partition_switches_total",
		Help: "Total times the cursor moved into a different file",
	})

	ownedBuffers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jchain_reader_owned_buffers",
		Help: "Column buffers currently allocated by readers",
	})

	reg.MustRegister(positions, positionErrors, partitionSwitches, ownedBuffers)

	return &Metrics{
		Positions:         positions,
		PositionErrors:    positionErrors,
		PartitionSwitches: partitionSwitches,
		OwnedBuffers:      ownedBuffers,
	}
}

func (m *Metrics) Allocated(string) {
	m.OwnedBuffers.Inc()
}

func (m *Metrics) Released(string) {
	m.OwnedBuffers.Dec()
}
