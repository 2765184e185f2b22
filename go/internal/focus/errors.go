package focus

import "errors"

// Error kinds returned by lifecycle operations. The service layer maps
// these onto HTTP status codes; none are retried automatically.
var (
	// ErrForbidden means the requester is authenticated but not a member
	// of the group.
	ErrForbidden = errors.New("not a member of this group")

	// ErrNoActiveSession means an operation required an active session and
	// none exists. The loser of an end/timeout race observes this too.
	ErrNoActiveSession = errors.New("no active focus session")

	// ErrSessionActive means a start was attempted while a session is
	// already active for the group.
	ErrSessionActive = errors.New("a focus session is already active")

	// ErrInvalidInput covers non-positive durations and malformed IDs.
	ErrInvalidInput = errors.New("invalid input")
)
