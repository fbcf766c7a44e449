package ratelimit

import (
	"context"
	"testing"

	"github.com/ulule/limiter/v3/drivers/store/memory"
)

func TestLimiter_AllowsUnderRate(t *testing.T) {
	l, err := NewLimiter(memory.NewStore(), "5-M")
	if err != nil {
		t.Fatalf("NewLimiter() error = %v", err)
	}

	result, err := l.IncrementCount(context.Background(), "key-a")
	if err != nil {
		t.Fatalf("IncrementCount() error = %v", err)
	}
	if result.OverLimit {
		t.Fatal("first call reported OverLimit")
	}
}

func TestLimiter_BlocksOverRate(t *testing.T) {
	l, err := NewLimiter(memory.NewStore(), "1-M")
	if err != nil {
		t.Fatalf("NewLimiter() error = %v", err)
	}
	ctx := context.Background()

	if _, err := l.IncrementCount(ctx, "key-b"); err != nil {
		t.Fatalf("IncrementCount() error = %v", err)
	}

	result, err := l.IncrementCount(ctx, "key-b")
	if err != nil {
		t.Fatalf("IncrementCount() error = %v", err)
	}
	if !result.OverLimit {
		t.Fatal("second call within the same minute was not reported OverLimit")
	}
	if result.RetryAfter <= 0 {
		t.Fatal("expected a positive RetryAfter once over limit")
	}
}

func TestLimiter_SeparateKeysAreIndependent(t *testing.T) {
	l, err := NewLimiter(memory.NewStore(), "1-M")
	if err != nil {
		t.Fatalf("NewLimiter() error = %v", err)
	}
	ctx := context.Background()

	if _, err := l.IncrementCount(ctx, "tenant-a_OpenSocketConn"); err != nil {
		t.Fatalf("IncrementCount() error = %v", err)
	}
	result, err := l.IncrementCount(ctx, "tenant-b_OpenSocketConn")
	if err != nil {
		t.Fatalf("IncrementCount() error = %v", err)
	}
	if result.OverLimit {
		t.Fatal("a different tenant's key was throttled by another tenant's usage")
	}
}

func TestNewStore_FallsBackToMemoryWithoutRedis(t *testing.T) {
	store, err := NewStore(nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if store == nil {
		t.Fatal("NewStore() returned a nil store")
	}
}
