// Package metrics collects operational counters for the recorder.
//
// Sink holds lock-free counters updated by every component. Reporter logs a
// summary on an interval and raises alerts when thresholds are crossed, at
// most once per cooldown per alert kind. Collector exposes the same numbers
// to Prometheus.
package metrics
