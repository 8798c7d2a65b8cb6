package errors

import "errors"

var (
	ErrNotFound = errors.New("listing not found")

	ErrInvalidID = errors.New("invalid listing ID format")

	ErrDuplicateKey = errors.New("listing with this idempotency key already exists")

	// ErrPreconditionFailed means a conditional transition matched no
	// document. The caller re-reads to learn why.
	ErrPreconditionFailed = errors.New("listing state does not allow this transition")
)
