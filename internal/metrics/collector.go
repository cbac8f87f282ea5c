// internal/metrics/collector.go
package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rovshanmuradov/nft-amm/internal/settlement"
	"github.com/rovshanmuradov/nft-amm/internal/types"
	"github.com/rovshanmuradov/nft-amm/pkg/fixedpoint"
)

const namespace = "nft_amm"

// MetricType names a metric held by the collector.
type MetricType string

const (
	SwapCounterType       MetricType = "swap_counter"
	SwapDurationType      MetricType = "swap_duration"
	FillCounterType       MetricType = "fill_counter"
	VolumeCounterType     MetricType = "volume_counter"
	PairCounterType       MetricType = "pair_counter"
	SettlementRetriesType MetricType = "settlement_retries"
	SkippedUnitsType      MetricType = "skipped_units"
)

// Collector owns the service metrics. Each collector registers its own
// vectors so tests can use a private registry.
type Collector struct {
	metrics sync.Map

	swaps    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	fills    *prometheus.CounterVec
	volume   *prometheus.CounterVec
	pairs    *prometheus.CounterVec
	retries  *prometheus.CounterVec
	skipped  *prometheus.CounterVec
}

var _ settlement.RetryObserver = (*Collector)(nil)

// NewCollector creates the metric vectors and registers them with reg.
// A nil reg uses the default prometheus registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		swaps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "swaps_total",
				Help:      "Swap requests processed",
			},
			[]string{"status", "direction", "mode"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "swap_duration_seconds",
				Help:      "Swap request duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"direction"},
		),
		fills: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fills_total",
				Help:      "Units filled against pairs",
			},
			[]string{"direction", "collection"},
		),
		volume: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "swap_volume",
				Help:      "Gross token volume of filled units",
			},
			[]string{"direction", "denom"},
		),
		pairs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pairs_created_total",
				Help:      "Pairs created",
			},
			[]string{"collection", "denom"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settlement_retries_total",
				Help:      "Settlement legs retried after a transient failure",
			},
			[]string{"kind"},
		),
		skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "skipped_units_total",
				Help:      "Units skipped by robust swaps",
			},
			[]string{"direction"},
		),
	}

	metricsMap := map[MetricType]prometheus.Collector{
		SwapCounterType:       c.swaps,
		SwapDurationType:      c.duration,
		FillCounterType:       c.fills,
		VolumeCounterType:     c.volume,
		PairCounterType:       c.pairs,
		SettlementRetriesType: c.retries,
		SkippedUnitsType:      c.skipped,
	}
	for metricType, metric := range metricsMap {
		c.metrics.Store(metricType, metric)
		reg.MustRegister(metric)
	}
	return c
}

// Reset clears every vector (useful for testing).
func (c *Collector) Reset() {
	c.metrics.Range(func(_, value interface{}) bool {
		switch m := value.(type) {
		case *prometheus.CounterVec:
			m.Reset()
		case *prometheus.GaugeVec:
			m.Reset()
		case *prometheus.HistogramVec:
			m.Reset()
		}
		return true
	})
}

// RecordSwap records the outcome of one swap request.
func (c *Collector) RecordSwap(ctx context.Context, d types.Direction, robust bool, duration time.Duration, err error) {
	mode := "strict"
	if robust {
		mode = "robust"
	}

	status := "success"
	switch {
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		status = "cancelled"
	case err != nil:
		status = "failed"
	}

	c.swaps.WithLabelValues(status, string(d), mode).Inc()
	c.duration.WithLabelValues(string(d)).Observe(duration.Seconds())
}

// RecordFill counts one filled unit and its gross volume.
func (c *Collector) RecordFill(d types.Direction, collection, denom string, gross *uint256.Int) {
	c.fills.WithLabelValues(string(d), collection).Inc()
	c.volume.WithLabelValues(string(d), denom).Add(fixedpoint.Float64(gross))
}

// RecordSkipped counts units a robust swap skipped.
func (c *Collector) RecordSkipped(d types.Direction, n int) {
	if n <= 0 {
		return
	}
	c.skipped.WithLabelValues(string(d)).Add(float64(n))
}

func (c *Collector) RecordPairCreated(collection, denom string) {
	c.pairs.WithLabelValues(collection, denom).Inc()
}

// SettlementRetried implements settlement.RetryObserver.
func (c *Collector) SettlementRetried(kind settlement.Kind) {
	c.retries.WithLabelValues(string(kind)).Inc()
}
