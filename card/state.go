package card

// State is the lifecycle state of a grid card.
type State uint8

const (
	// StateIssued is the initial state: generated and persisted, codes
	// exportable for delivery, not yet usable for authentication.
	StateIssued State = iota
	// StateActive accepts challenges and verifications.
	StateActive
	// StateSuspended is a reversible hold (suspected compromise).
	StateSuspended
	// StateExpired is terminal for authentication purposes.
	StateExpired
	// StateRevoked is terminal; the record is retained for audit only.
	StateRevoked
)

func (s State) String() string {
	switch s {
	case StateIssued:
		return "issued"
	case StateActive:
		return "active"
	case StateSuspended:
		return "suspended"
	case StateExpired:
		return "expired"
	case StateRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state rejects all further
// authentication activity.
func (s State) Terminal() bool {
	return s == StateExpired || s == StateRevoked
}

// CanTransition reports whether from→to is a legal lifecycle edge.
// Revoke is allowed from every state except Revoked itself, so an
// expired card can still be revoked for audit bookkeeping.
func CanTransition(from, to State) bool {
	switch to {
	case StateActive:
		return from == StateIssued || from == StateSuspended
	case StateSuspended:
		return from == StateActive
	case StateExpired:
		return from == StateActive || from == StateSuspended
	case StateRevoked:
		return from != StateRevoked
	default:
		return false
	}
}
