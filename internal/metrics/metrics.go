package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type MonitorMetrics struct {
	PollTicks           *prometheus.CounterVec
	PollFailures        *prometheus.CounterVec
	TransfersIngested   prometheus.Counter
	WhalesDetected      prometheus.Counter
	DuplicatesSkipped   prometheus.Counter
	BalanceRefreshes    prometheus.Counter
	BalanceFailures     prometheus.Counter
	RiskAnalyses        prometheus.Counter
	APIRequests         *prometheus.CounterVec
	UpstreamLatency     prometheus.Histogram
	TrackedWalletsGauge prometheus.Gauge
}

func NewMonitorMetrics() MonitorMetrics {
	return MonitorMetrics{
		PollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_monitor_poll_ticks_total",
			Help: "Total number of poll ticks per background task",
		}, []string{"task"}),
		PollFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_monitor_poll_failures_total",
			Help: "Total number of failed poll ticks per background task",
		}, []string{"task"}),
		TransfersIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wallet_monitor_transfers_ingested_total",
			Help: "Total number of transfers persisted by the ingestion poller",
		}),
		WhalesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wallet_monitor_whales_detected_total",
			Help: "Total number of whale transfers detected",
		}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wallet_monitor_duplicates_skipped_total",
			Help: "Total number of transfers skipped as duplicates",
		}),
		BalanceRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wallet_monitor_balance_refreshes_total",
			Help: "Total number of completed balance refresh cycles",
		}),
		BalanceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wallet_monitor_balance_failures_total",
			Help: "Total number of failed balance fetches",
		}),
		RiskAnalyses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wallet_monitor_risk_analyses_total",
			Help: "Total number of wallet risk analyses performed",
		}),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_monitor_api_requests_total",
			Help: "Total number of gateway API requests by endpoint and status",
		}, []string{"endpoint", "status"}),
		UpstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wallet_monitor_upstream_latency_seconds",
			Help:    "Upstream indexer/explorer request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		TrackedWalletsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wallet_monitor_tracked_wallets",
			Help: "Current number of wallets under balance tracking",
		}),
	}
}

func RegisterMetrics(m MonitorMetrics) {
	prometheus.MustRegister(m.PollTicks, m.PollFailures, m.TransfersIngested,
		m.WhalesDetected, m.DuplicatesSkipped, m.BalanceRefreshes, m.BalanceFailures,
		m.RiskAnalyses, m.APIRequests, m.UpstreamLatency, m.TrackedWalletsGauge)
}
