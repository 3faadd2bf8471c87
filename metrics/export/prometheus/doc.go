// Package prometheus renders gigauth client metrics in Prometheus text
// exposition format.
//
// [New] accepts a [gigauth.Engine] (or any [MetricsSource]) and exposes an
// [http.Handler] for a scrape endpoint. Counter names are gigauth_*_total;
// the request and refresh histograms are gigauth_request_latency_seconds and
// gigauth_refresh_latency_seconds.
//
// Nothing is registered in a global registry; callers mount the Handler.
package prometheus
