package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func (brokenCache) Delete(context.Context, string) error { return nil }
func (brokenCache) Ping(context.Context) error           { return errors.New("connection refused") }
func (brokenCache) Close() error                         { return nil }

type payload struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(NewMemory(), zap.NewNop(), time.Second)
	ctx := context.Background()

	var miss payload
	found, available := store.TryGet(ctx, "raw-jobs", &miss)
	if found || !available {
		t.Fatalf("expected available miss, got found=%v available=%v", found, available)
	}

	if !store.TrySet(ctx, "raw-jobs", payload{Name: "a", Items: []string{"x", "y"}}, time.Minute) {
		t.Fatalf("expected write to succeed")
	}

	var got payload
	found, available = store.TryGet(ctx, "raw-jobs", &got)
	if !found || !available {
		t.Fatalf("expected hit, got found=%v available=%v", found, available)
	}
	if got.Name != "a" || len(got.Items) != 2 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestStoreExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	backend := NewMemory().WithClock(func() time.Time { return now })
	store := NewStore(backend, nil, 0)
	ctx := context.Background()

	store.TrySet(ctx, "recommendations:1", payload{Name: "cached"}, time.Hour)

	now = now.Add(59 * time.Minute)
	var got payload
	if found, _ := store.TryGet(ctx, "recommendations:1", &got); !found {
		t.Fatalf("expected entry before expiry")
	}

	now = now.Add(time.Minute)
	if found, available := store.TryGet(ctx, "recommendations:1", &got); found || !available {
		t.Fatalf("expected expired entry to miss, got found=%v available=%v", found, available)
	}
}

func TestStoreUnavailableBackend(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := NewStore(brokenCache{}, zap.New(core), time.Second)
	ctx := context.Background()

	var got payload
	found, available := store.TryGet(ctx, "raw-jobs", &got)
	if found || available {
		t.Fatalf("expected unavailable, got found=%v available=%v", found, available)
	}

	if store.TrySet(ctx, "raw-jobs", payload{}, time.Minute) {
		t.Fatalf("expected write to report unavailable")
	}

	if logs.FilterMessage("cache read failed").Len() != 1 || logs.FilterMessage("cache write failed").Len() != 1 {
		t.Fatalf("expected warn logs for both failures, got %d entries", logs.Len())
	}
}

func TestStoreNilBackend(t *testing.T) {
	store := NewStore(nil, nil, 0)

	var got payload
	if found, available := store.TryGet(context.Background(), "k", &got); found || available {
		t.Fatalf("nil backend must be unavailable")
	}
	if store.TrySet(context.Background(), "k", got, time.Minute) {
		t.Fatalf("nil backend must be unavailable")
	}
	if err := store.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error for disabled cache")
	}
}

func TestStoreCorruptEntryIsMiss(t *testing.T) {
	backend := NewMemory()
	_ = backend.Set(context.Background(), "raw-jobs", []byte("{not json"), time.Minute)
	store := NewStore(backend, nil, 0)

	var got payload
	found, available := store.TryGet(context.Background(), "raw-jobs", &got)
	if found || !available {
		t.Fatalf("expected corrupt entry to be an available miss, got found=%v available=%v", found, available)
	}
}
