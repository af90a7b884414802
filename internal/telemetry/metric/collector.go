package metric

import "github.com/prometheus/client_golang/prometheus"

// StateSource reports point-in-time counts. The funcs must be cheap and
// safe for concurrent use; they run on every scrape.
type StateSource struct {
	// Bindings is the number of accounts with a bound session.
	Bindings func() int

	// Sessions is the number of sessions in storage.
	Sessions func() int

	// MultiSessionAccounts is the number of accounts with more than one
	// session in storage.
	MultiSessionAccounts func() int
}

// StateCollector exports StateSource as gauges at scrape time.
type StateCollector struct {
	src      StateSource
	bindings *prometheus.Desc
	sessions *prometheus.Desc
	multi    *prometheus.Desc
}

// NewCollector creates a collector for src. Nil funcs are skipped.
func NewCollector(src StateSource) *StateCollector {
	return &StateCollector{
		src: src,
		bindings: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "identity_bindings"),
			"Accounts that currently have a bound session.",
			nil, nil,
		),
		sessions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "sessions_stored"),
			"Sessions held by session storage, including expired ones not yet swept.",
			nil, nil,
		),
		multi: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "multi_session_accounts"),
			"Accounts holding more than one stored session. Stays non-zero only if an evicted session was not destroyed.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *StateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.bindings
	ch <- c.sessions
	ch <- c.multi
}

// Collect implements prometheus.Collector.
func (c *StateCollector) Collect(ch chan<- prometheus.Metric) {
	if c.src.Bindings != nil {
		ch <- prometheus.MustNewConstMetric(c.bindings, prometheus.GaugeValue, float64(c.src.Bindings()))
	}
	if c.src.Sessions != nil {
		ch <- prometheus.MustNewConstMetric(c.sessions, prometheus.GaugeValue, float64(c.src.Sessions()))
	}
	if c.src.MultiSessionAccounts != nil {
		ch <- prometheus.MustNewConstMetric(c.multi, prometheus.GaugeValue, float64(c.src.MultiSessionAccounts()))
	}
}
