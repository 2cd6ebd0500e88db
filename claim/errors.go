package claim

import "errors"

var (
	// ErrNotFound signals the referenced claim does not exist.
	ErrNotFound = errors.New("claim: not found")
	// ErrConflict signals the claim is not in the state required for the
	// requested transition (e.g. taking an already-taken claim).
	ErrConflict = errors.New("claim: conflicting state transition")
	// ErrInvalidDecision signals a validation failure on decision fields.
	ErrInvalidDecision = errors.New("claim: invalid decision")
	// ErrInvalidInput signals malformed caller input outside the decision
	// payload: unknown enum values, missing required snapshots or ids.
	ErrInvalidInput = errors.New("claim: invalid input")
	// ErrAlreadyResolved signals the approval already carries a final verdict.
	ErrAlreadyResolved = errors.New("claim: approval already resolved")
	// ErrUnauthorized signals the actor lacks the role or ownership required.
	ErrUnauthorized = errors.New("claim: actor not authorized")
)
