// Package metrics exposes startup counters and timings to Prometheus.
//
// Collectors live on a private registry so several App instances, and
// tests, never collide on the default one.
package metrics
