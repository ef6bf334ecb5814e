// Package otel mirrors bankauth engine metrics into OpenTelemetry.
//
// [NewExporter] registers an Int64ObservableCounter for each engine counter
// and an Int64ObservableGauge per cumulative histogram bucket. One callback
// reads the engine snapshot on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
