// Package prometheus exports bankauth engine metrics through
// client_golang.
//
// [NewCollector] turns each engine counter into a bankauth_*_total counter
// and each latency histogram into a const histogram. [NewRegistry] and
// [Handler] serve them at /metrics together with the runtime collectors.
//
// # What this package must NOT do
//
//   - Register on the global registry unless the caller passes it in.
//   - Mutate engine state.
package prometheus
