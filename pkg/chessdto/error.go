package chessdto

// ErrorKind classifies a rejected request on the wire.
type ErrorKind string

const (
	ErrInvalidMove            ErrorKind = "invalid_move"
	ErrOutOfTurn              ErrorKind = "out_of_turn"
	ErrMatchNotFound          ErrorKind = "match_not_found"
	ErrStaleMatch             ErrorKind = "stale_match"
	ErrMatchBusy              ErrorKind = "match_busy"
	ErrNotStarted             ErrorKind = "not_started"
	ErrNotParticipant         ErrorKind = "not_participant"
	ErrPersistenceUnavailable ErrorKind = "persistence_unavailable"
	ErrBadRequest             ErrorKind = "bad_request"
)

// Retryable reports whether resending the same request may succeed.
func (k ErrorKind) Retryable() bool {
	return k == ErrMatchBusy || k == ErrPersistenceUnavailable
}

// DomainError carries a kind and a human-readable message.
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Kind != "" {
		return string(e.Kind)
	}
	return "match service error"
}
