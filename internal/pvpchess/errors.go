package pvpchess

import "errors"

var (
	ErrInvalidArgs            = errors.New("invalid arguments")
	ErrOutOfTurn              = errors.New("not your turn")
	ErrMatchNotFound          = errors.New("match not found")
	ErrStaleMatch             = errors.New("match already ended")
	ErrMatchBusy              = errors.New("another move is being applied to this match")
	ErrNotStarted             = errors.New("match not started")
	ErrNotParticipant         = errors.New("user is not a participant of this match")
	ErrNotExpired             = errors.New("match time budget not exhausted")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	// ErrMoveGap is returned by stores when an appended ply does not follow the stored ones.
	ErrMoveGap = errors.New("appended move does not follow stored moves")
)
