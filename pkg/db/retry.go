// Package db holds storage-agnostic helpers shared by every repository
// implementation.
package db

import (
	"context"
	"errors"
)

// ErrTransient marks a storage failure that may succeed if attempted again,
// such as a dropped connection or a server-side timeout.
var ErrTransient = errors.New("transient storage failure")

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// RetryOnce runs fn and, if it fails with a transient error, runs it exactly
// one more time. The second result is returned as is.
func RetryOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil || !IsTransient(err) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return err
	}
	return fn(ctx)
}
