package mongo

import (
	"context"
	"errors"
	"fmt"
	"seva/pkg/db"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithTimeout bounds ctx by timeout unless the caller's deadline is sooner.
// A SessionContext is returned unchanged since wrapping it would detach the
// operation from its transaction.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

// Wrap annotates a driver error with the operation name and tags network
// failures and server timeouts as db.ErrTransient.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, db.ErrTransient, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ObjectIDHex returns the hex form of an inserted id.
func ObjectIDHex(id any) string {
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return ""
}

// NewID returns a fresh ObjectID in hex form. Callers that retry an insert
// assign it up front so every attempt writes the same document.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// Now is the storage clock: UTC, truncated to the millisecond precision
// BSON dates keep, so a value read back compares equal to what was written.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
