package gridauth

import (
	"time"

	"github.com/zhoulytwinyu/gridauth/card"
	"github.com/zhoulytwinyu/gridauth/challenge"
	"github.com/zhoulytwinyu/gridauth/internal/rng"
)

// CardState is the lifecycle state of a grid card.
type CardState = card.State

const (
	// CardIssued is an issued card awaiting activation; codes are still exportable.
	CardIssued = card.StateIssued
	// CardActive accepts challenges and verifications.
	CardActive = card.StateActive
	// CardSuspended is a reversible hold.
	CardSuspended = card.StateSuspended
	// CardExpired is terminal for authentication purposes.
	CardExpired = card.StateExpired
	// CardRevoked is terminal; the record is retained for audit.
	CardRevoked = card.StateRevoked
)

// Coordinate addresses one cell of a grid card.
type Coordinate = challenge.Coordinate

// RandomSource is the injected secure randomness capability consumed
// by the card generator and challenge selector. Production deployments
// leave it unset (crypto/rand); tests may substitute a deterministic
// seeded source.
type RandomSource = rng.Source

// CardStore is the durable storage interface consumed by the manager.
// See [store.Memory] and [store.Redis] for the shipped implementations.
type CardStore = card.Store

// IssueRequest describes a card to issue. Zero-valued layout fields
// fall back to [Config.Card] defaults.
type IssueRequest struct {
	OwnerID    string
	Rows       int
	Columns    int
	CodeLength int
	Alphabet   string
}

// CardInfo is the metadata view of a card returned to callers. It
// never carries code values.
type CardInfo struct {
	CardID  string
	OwnerID string

	Rows    int
	Columns int

	State          CardState
	FailedAttempts int
	LockedUntil    time.Time

	CreatedAt     time.Time
	ActivatedAt   time.Time
	ExpiresAt     time.Time
	LastSuccessAt time.Time

	Version uint64
}

// Challenge is one authentication attempt: a single-use token plus the
// coordinates whose codes the user must reveal, in the order returned.
// Code values are never included.
type Challenge struct {
	CardID      string
	Token       string
	Coordinates []Coordinate
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Verdict classifies the outcome of a response submission. These are
// expected, frequent states callers must branch on; they are not
// errors.
type Verdict uint8

const (
	// VerdictSuccess means every challenged code matched.
	VerdictSuccess Verdict = iota
	// VerdictFailure means at least one code mismatched.
	VerdictFailure
	// VerdictExpired means the token was unknown, already consumed, or
	// past its validity window; no attempt was consumed.
	VerdictExpired
	// VerdictLocked means the failure threshold was reached and the
	// cool-down has not elapsed; codes were not compared.
	VerdictLocked
	// VerdictNotFound means the card record no longer exists.
	VerdictNotFound
)

func (v Verdict) String() string {
	switch v {
	case VerdictSuccess:
		return "success"
	case VerdictFailure:
		return "failure"
	case VerdictExpired:
		return "expired"
	case VerdictLocked:
		return "locked"
	case VerdictNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// VerificationResult is returned by [Manager.SubmitResponse]. The
// counter and state snapshot reflect the record after the attempt was
// recorded.
type VerificationResult struct {
	Verdict Verdict

	CardID         string
	FailedAttempts int
	State          CardState
}

func newCardInfo(c *card.Card) CardInfo {
	return CardInfo{
		CardID:         c.ID,
		OwnerID:        c.OwnerID,
		Rows:           c.Rows,
		Columns:        c.Columns,
		State:          c.State,
		FailedAttempts: int(c.FailedAttempts),
		LockedUntil:    unixTime(c.LockedUntil),
		CreatedAt:      unixTime(c.CreatedAt),
		ActivatedAt:    unixTime(c.ActivatedAt),
		ExpiresAt:      unixTime(c.ExpiresAt),
		LastSuccessAt:  unixTime(c.LastSuccessAt),
		Version:        c.Version,
	}
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
