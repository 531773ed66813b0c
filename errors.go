package gridauth

import "errors"

var (
	// ErrCardNotFound indicates no card record exists for the given id.
	ErrCardNotFound = errors.New("card not found")
	// ErrDuplicateCard indicates issuance collided with an existing card id.
	ErrDuplicateCard = errors.New("card id already exists")
	// ErrCardNotActive indicates the card state rejects challenges or verifications.
	ErrCardNotActive = errors.New("card not active")
	// ErrInvalidTransition indicates an illegal lifecycle state change.
	ErrInvalidTransition = errors.New("invalid card state transition")
	// ErrInvalidDimensions indicates a card layout outside the configured bounds.
	ErrInvalidDimensions = errors.New("invalid card dimensions")
	// ErrInvalidAlphabet indicates a code alphabet that is too small or contains duplicates.
	ErrInvalidAlphabet = errors.New("invalid card alphabet")
	// ErrInsufficientEntropy indicates a layout below the configured entropy floor.
	ErrInsufficientEntropy = errors.New("insufficient card entropy")
	// ErrRandomSourceUnavailable indicates the secure random source could not be read.
	ErrRandomSourceUnavailable = errors.New("secure random source unavailable")
	// ErrInvalidChallengeLength indicates a challenge length outside [1, rows*columns].
	ErrInvalidChallengeLength = errors.New("invalid challenge length")
	// ErrChallengeRateLimited indicates challenge issuance throttled for this card.
	ErrChallengeRateLimited = errors.New("challenge issuance rate limited")
	// ErrChallengeUnavailable indicates the challenge backend is unreachable.
	ErrChallengeUnavailable = errors.New("challenge backend unavailable")
	// ErrCardStoreUnavailable indicates the card store backend is unreachable.
	ErrCardStoreUnavailable = errors.New("card store unavailable")
	// ErrMalformedResponse indicates a response whose code count does not match the challenge.
	ErrMalformedResponse = errors.New("malformed challenge response")
	// ErrConcurrentModification indicates the bounded compare-and-swap retry budget was exhausted.
	ErrConcurrentModification = errors.New("concurrent card modification")
	// ErrManagerNotReady indicates use of a Manager that was not built.
	ErrManagerNotReady = errors.New("manager not initialized")
)
