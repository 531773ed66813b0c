// Package prometheus renders gridauth metrics for Prometheus scraping.
//
// [NewPrometheusExporter] accepts a [gridauth.Manager] and exposes an [http.Handler]
// that renders all gridauth counters and histograms in Prometheus text exposition
// format. Counter names are prefixed gridauth_*_total; the single histogram is
// gridauth_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
