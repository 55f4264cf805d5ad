// Package metric provides Prometheus metrics for moonlink.
//
//   - prometheus.go: private registry and the /metrics HTTP handler
//   - collector.go: session and live-connection metrics
//
// A nil *Collector is valid and records nothing, so components take
// metrics as an optional dependency.
package metric
