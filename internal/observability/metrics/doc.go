// Package metrics exposes reconciliation and gateway metrics on a private
// Prometheus registry, served over HTTP together with a /healthz probe.
package metrics
