package submit

import (
	"github.com/tbxark/adagent/platform"
)

type Kind string

const (
	KindRetryable       Kind = "retryable"
	KindPermanent       Kind = "permanent"
	KindTimeout         Kind = "timeout"
	KindDeclined        Kind = "declined"
	KindReauthRequired  Kind = "reauth_required"
	KindTooManyAttempts Kind = "too_many_attempts"
)

type Failure struct {
	Code           int
	Message        string
	Classification platform.Classification
	Kind           Kind
}

// Outcome is the final result of a submission. Exactly one of Success and
// Failure is set.
type Outcome struct {
	Success  *platform.Campaign
	Failure  *Failure
	Attempts int
}

func (o Outcome) OK() bool {
	return o.Success != nil
}
