// Package prometheus provides a Prometheus collector for registry
// counters.
//
// [NewCollector] adapts one metrics snapshot per scrape into constant
// counter metrics; [Handler] mounts the collector in a private registry
// and serves the standard scrape endpoint. Counter names are prefixed
// sessionkit_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers mount
//     the Handler.
//   - Mutate registry state.
package prometheus
