// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the market engine. A nil
// *Metrics is a valid no-op instance, so tests and embedders that do not
// scrape can pass nil.
type Metrics struct {
	poolsCreated      prometheus.Counter
	liquidityAdds     prometheus.Counter
	liquidityRemovals prometheus.Counter
	swaps             prometheus.Counter
	flashLoans        prometheus.Counter
	paused            prometheus.Gauge
}

// NewMetrics creates and registers the engine's metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		poolsCreated: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Subsystem: "amm",
			Name:      "pools_created_total",
			Help:      "Total number of pools registered.",
		}),
		liquidityAdds: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Subsystem: "amm",
			Name:      "liquidity_adds_total",
			Help:      "Total number of successful liquidity deposits.",
		}),
		liquidityRemovals: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Subsystem: "amm",
			Name:      "liquidity_removals_total",
			Help:      "Total number of successful liquidity withdrawals.",
		}),
		swaps: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Subsystem: "amm",
			Name:      "swaps_total",
			Help:      "Total number of successful swaps.",
		}),
		flashLoans: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Subsystem: "amm",
			Name:      "flash_loans_total",
			Help:      "Total number of flash loans issued and repaid.",
		}),
		paused: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Subsystem: "amm",
			Name:      "paused",
			Help:      "1 when the market pause flag is set, 0 otherwise.",
		}),
	}
}

func (m *Metrics) PoolCreated() {
	if m != nil {
		m.poolsCreated.Inc()
	}
}

func (m *Metrics) LiquidityAdded() {
	if m != nil {
		m.liquidityAdds.Inc()
	}
}

func (m *Metrics) LiquidityRemoved() {
	if m != nil {
		m.liquidityRemovals.Inc()
	}
}

func (m *Metrics) SwapExecuted() {
	if m != nil {
		m.swaps.Inc()
	}
}

func (m *Metrics) FlashLoanExecuted() {
	if m != nil {
		m.flashLoans.Inc()
	}
}

func (m *Metrics) PausedSet(flag bool) {
	if m == nil {
		return
	}
	if flag {
		m.paused.Set(1)
	} else {
		m.paused.Set(0)
	}
}
