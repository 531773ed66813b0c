package internaldefs

import (
	gridauth "github.com/zhoulytwinyu/gridauth"
)

// CounterDef binds a MetricID to its stable exported name.
type CounterDef struct {
	ID   gridauth.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram MetricID to its stable exported name.
type HistogramDef struct {
	ID   gridauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter the exporters publish, in a stable
// order.
var CounterDefs = []CounterDef{
	{ID: gridauth.MetricCardIssued, Name: "gridauth_card_issued_total", Help: "Cards generated and persisted."},
	{ID: gridauth.MetricCardActivated, Name: "gridauth_card_activated_total", Help: "Cards activated."},
	{ID: gridauth.MetricCardSuspended, Name: "gridauth_card_suspended_total", Help: "Cards placed on hold."},
	{ID: gridauth.MetricCardResumed, Name: "gridauth_card_resumed_total", Help: "Suspensions lifted."},
	{ID: gridauth.MetricCardRevoked, Name: "gridauth_card_revoked_total", Help: "Cards terminally revoked."},
	{ID: gridauth.MetricCardExpired, Name: "gridauth_card_expired_total", Help: "Cards expired, including lazy expiry on read."},
	{ID: gridauth.MetricCodesExported, Name: "gridauth_codes_exported_total", Help: "Full-grid code exports of issued cards."},
	{ID: gridauth.MetricLockoutCleared, Name: "gridauth_lockout_cleared_total", Help: "Operator lockout resets."},
	{ID: gridauth.MetricChallengeIssued, Name: "gridauth_challenge_issued_total", Help: "Challenges issued."},
	{ID: gridauth.MetricChallengeRateLimited, Name: "gridauth_challenge_rate_limited_total", Help: "Challenge requests refused by the per-card limiter."},
	{ID: gridauth.MetricChallengeFallback, Name: "gridauth_challenge_fallback_total", Help: "Selections that relaxed the recent-coordinate exclusion."},
	{ID: gridauth.MetricVerifySuccess, Name: "gridauth_verify_success_total", Help: "Fully matched verification responses."},
	{ID: gridauth.MetricVerifyFailure, Name: "gridauth_verify_failure_total", Help: "Mismatched verification responses."},
	{ID: gridauth.MetricVerifyExpired, Name: "gridauth_verify_expired_total", Help: "Responses against unknown, consumed, or stale tokens."},
	{ID: gridauth.MetricVerifyLocked, Name: "gridauth_verify_locked_total", Help: "Responses refused by an armed lockout."},
	{ID: gridauth.MetricVerifyMalformed, Name: "gridauth_verify_malformed_total", Help: "Responses rejected before comparison for shape errors."},
	{ID: gridauth.MetricLockoutTriggered, Name: "gridauth_lockout_triggered_total", Help: "Lockouts armed by reaching the failure threshold."},
	{ID: gridauth.MetricStoreConflictRetry, Name: "gridauth_store_conflict_retry_total", Help: "Version-conflict retries of card updates."},
	{ID: gridauth.MetricConcurrentModification, Name: "gridauth_concurrent_modification_total", Help: "Card updates abandoned after exhausting the retry limit."},
}

// HistogramDefs lists the exported histograms.
var HistogramDefs = []HistogramDef{
	{ID: gridauth.MetricVerifyLatency, Name: "gridauth_verify_latency_seconds", Help: "SubmitResponse latency histogram."},
}

// HistogramBounds are the Prometheus le labels matching the core
// bucket boundaries.
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

// HistogramBoundSuffix are attribute-safe renderings of the bounds.
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

// NormalizeBuckets widens a snapshot bucket slice into the fixed
// eight-bucket layout.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative
// form Prometheus histograms require.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
