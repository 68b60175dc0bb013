package engine

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the engine's Prometheus gauges/counters on the
// ServerConfig.MetricsPort endpoint (supplemented feature: the teacher's
// go.mod carries prometheus/client_golang unused in source).
type Metrics struct {
	Registry *prometheus.Registry

	OpenContracts  prometheus.Gauge
	DailyPnLPct    prometheus.Gauge
	Reconnects     prometheus.Counter
	IntentsOpened  prometheus.Counter
	OrdersFailed   prometheus.Counter
	ScreenerJobs   prometheus.Counter
}

func newMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		OpenContracts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "derivengine", Name: "open_contracts", Help: "Currently open contracts across all symbols.",
		}),
		DailyPnLPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "derivengine", Name: "daily_pnl_pct", Help: "Session daily PnL as a percentage of the day's starting balance.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "derivengine", Name: "broker_reconnects_total", Help: "Broker session reconnect attempts.",
		}),
		IntentsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "derivengine", Name: "intents_opened_total", Help: "Open intents emitted by the Strategy Evaluator.",
		}),
		OrdersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "derivengine", Name: "orders_failed_total", Help: "Error responses received from the broker API.",
		}),
		ScreenerJobs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "derivengine", Name: "screener_jobs_total", Help: "Screener scoring jobs submitted.",
		}),
	}
	reg.MustRegister(m.OpenContracts, m.DailyPnLPct, m.Reconnects, m.IntentsOpened, m.OrdersFailed, m.ScreenerJobs)
	return m
}
