package internaldefs

import (
	"github.com/MrEthical07/gigauth"
)

// CounterDef names one counter for exporters.
type CounterDef struct {
	ID   gigauth.MetricID
	Name string
	Help string
}

// HistogramDef names one latency histogram for exporters.
type HistogramDef struct {
	ID   gigauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in [gigauth.MetricID] order.
var CounterDefs = []CounterDef{
	{ID: gigauth.MetricRequestSuccess, Name: "gigauth_request_success_total", Help: "Requests that ended in Success."},
	{ID: gigauth.MetricRequestClientError, Name: "gigauth_request_client_error_total", Help: "Requests that ended in ClientError, including requests never sent."},
	{ID: gigauth.MetricRequestAuthExpired, Name: "gigauth_request_auth_expired_total", Help: "Requests answered with 401 on a session-protected endpoint."},
	{ID: gigauth.MetricRequestNetworkUnavailable, Name: "gigauth_request_network_unavailable_total", Help: "Requests that got no response."},
	{ID: gigauth.MetricRequestServerFault, Name: "gigauth_request_server_fault_total", Help: "Requests answered with 5xx or another unexpected status."},
	{ID: gigauth.MetricRequestReplayed, Name: "gigauth_request_replayed_total", Help: "Requests resent once after a successful refresh."},
	{ID: gigauth.MetricLoginSuccess, Name: "gigauth_login_success_total", Help: "Successful logins."},
	{ID: gigauth.MetricLoginRejected, Name: "gigauth_login_rejected_total", Help: "Logins refused by the backend."},
	{ID: gigauth.MetricLoginFailure, Name: "gigauth_login_failure_total", Help: "Logins that failed for any other reason."},
	{ID: gigauth.MetricRegisterSuccess, Name: "gigauth_register_success_total", Help: "Successful registrations."},
	{ID: gigauth.MetricRegisterInvalid, Name: "gigauth_register_invalid_total", Help: "Registrations stopped by local validation."},
	{ID: gigauth.MetricRegisterFailure, Name: "gigauth_register_failure_total", Help: "Registrations refused or failed at the backend."},
	{ID: gigauth.MetricRefreshSuccess, Name: "gigauth_refresh_success_total", Help: "Refresh calls that produced a new credential."},
	{ID: gigauth.MetricRefreshFailure, Name: "gigauth_refresh_failure_total", Help: "Refresh calls that failed and ended the session."},
	{ID: gigauth.MetricRefreshJoined, Name: "gigauth_refresh_joined_total", Help: "Callers that waited on a refresh already in flight."},
	{ID: gigauth.MetricSessionExpired, Name: "gigauth_session_expired_total", Help: "Sessions ended with no refresh credential to try."},
	{ID: gigauth.MetricLogout, Name: "gigauth_logout_total", Help: "Logout operations."},
	{ID: gigauth.MetricExternalChange, Name: "gigauth_external_change_total", Help: "Sessions adopted or dropped after another process changed the store."},
	{ID: gigauth.MetricStoreFailure, Name: "gigauth_store_failure_total", Help: "Session store reads or writes that failed."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: gigauth.MetricRequestLatency, Name: "gigauth_request_latency_seconds", Help: "Request latency histogram, one sample per dispatch."},
	{ID: gigauth.MetricRefreshLatency, Name: "gigauth_refresh_latency_seconds", Help: "Refresh call latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, matching the
// in-process histogram.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix renders each bound for use in metric names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling short input.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into the cumulative form
// Prometheus and OTel expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
