package contract

import "errors"

// Error taxonomy surfaced to clients; failed invocations wrap one of
// these sentinels so callers can branch with errors.Is. A returned
// error aborts the transaction: nothing is written and no event is
// emitted.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrDuplicateCredential = errors.New("duplicate credential")
	ErrAlreadyRevoked      = errors.New("credential already revoked")
	ErrNotAuthorized       = errors.New("institution not authorized")
)
