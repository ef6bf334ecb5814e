// Package metrics holds the engine's in-process counters and latency
// histograms.
//
// Each counter is a padded uint64 slot bumped with sync/atomic; the two
// latency histograms (login, validate) share the eight buckets from 5ms to
// +Inf. Recording never allocates.
//
// Exporters under metrics/export read [Snapshot] values and own every
// registry; this package performs no I/O and imports nothing from bankauth.
package metrics
