package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wallet_indexer"

// Metrics groups the collectors updated by the indexer. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	syncTotal       *prometheus.CounterVec
	syncDuration    *prometheus.HistogramVec
	addressesSynced *prometheus.CounterVec
	chainHead       *prometheus.GaugeVec
	oracleRequests  *prometheus.CounterVec
	cacheEntries    *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		syncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_total",
			Help:      "Address batch syncs by chain and outcome.",
		}, []string{"chain", "outcome"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of address batch syncs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"chain"}),
		addressesSynced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "addresses_synced_total",
			Help:      "Addresses refreshed successfully.",
		}, []string{"chain"}),
		chainHead: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chain_head_block",
			Help:      "Latest block observed per chain.",
		}, []string{"chain"}),
		oracleRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_oracle_requests_total",
			Help:      "Price oracle requests by outcome.",
		}, []string{"outcome"}),
		cacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Entries held by the wallet cache.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.syncTotal, m.syncDuration, m.addressesSynced, m.chainHead, m.oracleRequests, m.cacheEntries)
	}
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveSync records one SyncAddresses call.
func (m *Metrics) ObserveSync(chain string, addresses int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.syncTotal.WithLabelValues(chain, outcome(err)).Inc()
	m.syncDuration.WithLabelValues(chain).Observe(elapsed.Seconds())
	if err == nil {
		m.addressesSynced.WithLabelValues(chain).Add(float64(addresses))
	}
}

// SetChainHead records the latest block seen on chain.
func (m *Metrics) SetChainHead(chain string, block uint64) {
	if m == nil {
		return
	}
	m.chainHead.WithLabelValues(chain).Set(float64(block))
}

// ObserveOracle records one price oracle request.
func (m *Metrics) ObserveOracle(err error) {
	if m == nil {
		return
	}
	m.oracleRequests.WithLabelValues(outcome(err)).Inc()
}

// SetCachedWallets records the number of cached wallets.
func (m *Metrics) SetCachedWallets(n int) {
	if m == nil {
		return
	}
	m.cacheEntries.WithLabelValues("wallets").Set(float64(n))
}

// SetCachedBalances records the number of cached address balances.
func (m *Metrics) SetCachedBalances(n int) {
	if m == nil {
		return
	}
	m.cacheEntries.WithLabelValues("balances").Set(float64(n))
}
