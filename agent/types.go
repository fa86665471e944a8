package agent

import (
	"errors"

	"github.com/tbxark/adagent/submit"
	"github.com/tbxark/adagent/types"
)

var (
	ErrSessionClosed   = errors.New("session already finished")
	ErrTooManyAttempts = errors.New("too many music attempts")
	errAborted         = errors.New("aborted by user")
)

// TurnResult describes what one user turn did to the session.
type TurnResult struct {
	Phase    types.Phase
	Message  string
	Response types.TurnResponse
	Snapshot types.Snapshot
	Progress types.Progress
	// Validation is set when the turn ran validation and it failed.
	Validation *types.ValidationResult
	// MusicErr is set when a music sub-flow gave up.
	MusicErr error
	Outcome  *submit.Outcome
}

// Result is the final state of a session.
type Result struct {
	SessionID string
	Phase     types.Phase
	Snapshot  types.Snapshot
	Outcome   *submit.Outcome
}
