package gridauth

import (
	"context"
	"errors"
	"time"

	"github.com/zhoulytwinyu/gridauth/card"
	"github.com/zhoulytwinyu/gridauth/internal/rng"
)

const (
	auditEventCardIssued           = "card_issued"
	auditEventCardActivated        = "card_activated"
	auditEventCardSuspended        = "card_suspended"
	auditEventCardResumed          = "card_resumed"
	auditEventCardRevoked          = "card_revoked"
	auditEventCardExpired          = "card_expired"
	auditEventCodesExported        = "codes_exported"
	auditEventLockoutCleared       = "lockout_cleared"
	auditEventChallengeIssued      = "challenge_issued"
	auditEventChallengeRateLimited = "challenge_rate_limited"
	auditEventChallengeFallback    = "challenge_exclusion_fallback"
	auditEventVerifySuccess        = "verify_success"
	auditEventVerifyFailure        = "verify_failure"
	auditEventVerifyExpired        = "verify_expired"
	auditEventVerifyLocked         = "verify_locked"
	auditEventVerifyMalformed      = "verify_malformed"
	auditEventCardLockedOut        = "card_locked_out"
)

// AuditErrorCode is the stable error label recorded in audit events.
type AuditErrorCode string

const (
	auditErrCardNotFound  AuditErrorCode = "card_not_found"
	auditErrDuplicate     AuditErrorCode = "duplicate"
	auditErrNotActive     AuditErrorCode = "card_not_active"
	auditErrBadTransition AuditErrorCode = "invalid_transition"
	auditErrBadDimensions AuditErrorCode = "invalid_dimensions"
	auditErrBadAlphabet   AuditErrorCode = "invalid_alphabet"
	auditErrLowEntropy    AuditErrorCode = "insufficient_entropy"
	auditErrRandomSource  AuditErrorCode = "random_source_unavailable"
	auditErrBadLength     AuditErrorCode = "invalid_challenge_length"
	auditErrRateLimited   AuditErrorCode = "rate_limited"
	auditErrMalformed     AuditErrorCode = "malformed_response"
	auditErrConcurrentMod AuditErrorCode = "concurrent_modification"
	auditErrUnavailable   AuditErrorCode = "backend_unavailable"
	auditErrInternal      AuditErrorCode = "internal_error"
)

func (m *Manager) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	cardID string,
	ownerID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if m == nil || m.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		CardID:    cardID,
		OwnerID:   ownerID,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	m.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrCardNotFound):
		return auditErrCardNotFound
	case errors.Is(err, ErrDuplicateCard):
		return auditErrDuplicate
	case errors.Is(err, ErrCardNotActive):
		return auditErrNotActive
	case errors.Is(err, ErrInvalidTransition):
		return auditErrBadTransition
	case errors.Is(err, ErrInvalidDimensions):
		return auditErrBadDimensions
	case errors.Is(err, ErrInvalidAlphabet):
		return auditErrBadAlphabet
	case errors.Is(err, ErrInsufficientEntropy):
		return auditErrLowEntropy
	case errors.Is(err, ErrRandomSourceUnavailable),
		errors.Is(err, rng.ErrUnavailable):
		return auditErrRandomSource
	case errors.Is(err, ErrInvalidChallengeLength):
		return auditErrBadLength
	case errors.Is(err, ErrChallengeRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrMalformedResponse):
		return auditErrMalformed
	case errors.Is(err, ErrConcurrentModification),
		errors.Is(err, card.ErrVersionConflict):
		return auditErrConcurrentMod
	case errors.Is(err, ErrChallengeUnavailable),
		errors.Is(err, ErrCardStoreUnavailable),
		errors.Is(err, card.ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
