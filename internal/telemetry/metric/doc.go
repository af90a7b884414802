// Package metric provides Prometheus metrics for sessionguard.
//
//   - prometheus.go: Registry, the service recorder and HTTP observer
//   - collector.go: scrape-time gauges for bindings and stored sessions
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
