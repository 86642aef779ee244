// Package metric exposes bot counters in the Prometheus format on an
// optional /metrics endpoint.
package metric
