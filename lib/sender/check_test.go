package sender

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCheckTarget(t *testing.T) {
	store := newFakeStore()
	if err := CheckTarget(context.Background(), testConfig(), store.factory()); err != nil {
		t.Fatalf("expected check to pass, got %v", err)
	}

	config := testConfig()
	config.ExpectedDatabases = 64
	if err := CheckTarget(context.Background(), config, store.factory()); !IsFatal(err) || !errors.Is(err, ErrDatabaseCount) {
		t.Errorf("expected fatal ErrDatabaseCount, got %v", err)
	}

	store.password = "secret"
	if err := CheckTarget(context.Background(), testConfig(), store.factory()); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("expected ErrAuthRequired, got %v", err)
	}
}

func TestCheckTargetUnreachable(t *testing.T) {
	store := newFakeStore()
	store.refuse = true

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := CheckTarget(ctx, testConfig(), store.factory())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
