package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BridgeTransfersTotal counts bridge transfers by direction and status
	BridgeTransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_bridge_transfers_total",
			Help: "Total number of bridge transfers",
		},
		[]string{"direction", "status"},
	)

	// BridgeTransferAmount tracks the amount of tokens bridged
	BridgeTransferAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_bridge_transfer_amount",
			Help:    "Amount of tokens bridged",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000},
		},
		[]string{"direction", "chain"},
	)

	// SwapsTotal counts swaps by kind and status
	SwapsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_swaps_total",
			Help: "Total number of swaps",
		},
		[]string{"kind", "status"},
	)

	// SwapAmount tracks swap input amounts by pair
	SwapAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_swap_amount",
			Help:    "Swap input amount by token pair",
			Buckets: []float64{0.1, 1, 10, 100, 1000, 10000},
		},
		[]string{"from_token", "to_token"},
	)

	// FeesRoutedTotal counts fee routing outcomes by kind
	FeesRoutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_fees_routed_total",
			Help: "Total number of fee routing attempts",
		},
		[]string{"kind", "outcome"},
	)

	// FeeOutboxPending tracks the number of undelivered fee outbox entries
	FeeOutboxPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_fee_outbox_pending",
			Help: "Number of pending fee outbox entries",
		},
	)

	// LedgerRequestDuration tracks latency of ledger service calls
	LedgerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_ledger_request_duration_seconds",
			Help:    "Ledger service request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// DexRequestDuration tracks latency of market-maker service calls
	DexRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_dex_request_duration_seconds",
			Help:    "Market-maker service request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// RateRefreshTotal counts swap rate refresh outcomes
	RateRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_rate_refresh_total",
			Help: "Total number of swap rate refresh attempts",
		},
		[]string{"outcome"},
	)

	// RecordsArchivedTotal counts records marked archived by the retention sweep
	RecordsArchivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_records_archived_total",
			Help: "Total number of records archived by retention sweeps",
		},
		[]string{"table"},
	)

	// ErrorsTotal counts errors by component and type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)
