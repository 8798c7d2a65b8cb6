package mongo

import (
	"context"
	"errors"
	"seva/pkg/db"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestWithTimeout_KeepsEarlierDeadline(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ctx, cancelChild := WithTimeout(parent, time.Minute)
	defer cancelChild()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected a deadline")
	}
	if time.Until(deadline) > time.Second {
		t.Errorf("deadline should come from the parent, got %s away", time.Until(deadline))
	}
}

func TestWithTimeout_AddsDeadline(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, ok := ctx.Deadline(); !ok {
		t.Error("expected a deadline on a background context")
	}
}

func TestWrap(t *testing.T) {
	if Wrap("find listing", nil) != nil {
		t.Error("nil should stay nil")
	}

	timeoutErr := Wrap("reserve listing", context.DeadlineExceeded)
	if !db.IsTransient(timeoutErr) {
		t.Errorf("deadline exceeded should be transient: %v", timeoutErr)
	}
	if !errors.Is(timeoutErr, context.DeadlineExceeded) {
		t.Error("original error should stay in the chain")
	}

	if db.IsTransient(Wrap("insert", errors.New("document failed validation"))) {
		t.Error("validation failures are not transient")
	}
}

func TestObjectIDHex(t *testing.T) {
	oid := primitive.NewObjectID()
	if ObjectIDHex(oid) != oid.Hex() {
		t.Error("expected hex of the object id")
	}
	if ObjectIDHex("not-an-oid") != "" {
		t.Error("expected empty string for a non-ObjectID")
	}
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	if !primitive.IsValidObjectID(a) {
		t.Fatalf("NewID() = %q, want an ObjectID hex", a)
	}
	if a == b {
		t.Fatal("NewID returned the same id twice")
	}
}
