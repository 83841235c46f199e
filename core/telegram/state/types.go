package state

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// Session stores conversation state and typed scratch data for a user.
type Session[D any] struct {
	State State
	Data  D
}

// Idle reports whether no conversation is in progress.
func (s Session[D]) Idle() bool {
	return s.State == "" || s.State == StateIdle
}

// Manager orchestrates user sessions and FSM state transitions.
type Manager[D any] interface {
	// Get returns the user's session, or an idle one.
	Get(userID int64) Session[D]
	Set(userID int64, s Session[D])
	Clear(userID int64)
	InProgress(userID int64) bool

	// Lock blocks until the caller owns the user's conversation and returns
	// the matching unlock function.
	Lock(userID int64) (unlock func())
}
