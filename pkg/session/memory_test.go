package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemoryBackend())
}

func TestMemoryEndedHandleRejectsWrites(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	s, _ := b.Open(ctx, "x")
	if err := b.End(ctx, "x"); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := s.Set(ctx, FieldKey{PanelID: "p", Feature: "f"}, "1"); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("expected ErrSessionEnded, got %v", err)
	}
	if b.Len() != 0 {
		t.Fatalf("expected no live sessions, got %d", b.Len())
	}
}

func TestMemoryConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	s, _ := b.Open(ctx, "x")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := FieldKey{PanelID: "parkinsons", Feature: fmt.Sprintf("f%d", i)}
			_ = s.EnsureInitialized(ctx, []FieldKey{key})
			_ = s.Set(ctx, key, fmt.Sprint(i))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 50; i++ {
		key := FieldKey{PanelID: "parkinsons", Feature: fmt.Sprintf("f%d", i)}
		if v, _ := s.Get(ctx, key); v != fmt.Sprint(i) {
			t.Fatalf("key %s: got %q", key, v)
		}
	}
}

func TestMemoryIdleSessionsExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	b := NewMemoryBackend(WithIdleTTL(time.Hour))
	b.now = func() time.Time { return now }

	stale, _ := b.Open(ctx, "stale")
	for i := 0; i < 100; i++ {
		_, _ = b.Open(ctx, fmt.Sprintf("drive-by-%d", i))
	}
	now = now.Add(50 * time.Minute)
	_, _ = b.Open(ctx, "active")
	now = now.Add(20 * time.Minute)

	if n := b.Len(); n != 1 {
		t.Fatalf("expected only the active session to survive, got %d", n)
	}
	if err := stale.Set(ctx, FieldKey{PanelID: "p", Feature: "f"}, "1"); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("expired handle accepted a write: %v", err)
	}
	s, _ := b.Open(ctx, "stale")
	if v, _ := s.Get(ctx, FieldKey{PanelID: "p", Feature: "f"}); v != "" {
		t.Fatalf("reopened session kept state %q", v)
	}
}

func TestMemoryOpenRefreshesIdleTimer(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	b := NewMemoryBackend(WithIdleTTL(time.Hour))
	b.now = func() time.Time { return now }

	s, _ := b.Open(ctx, "x")
	_ = s.Set(ctx, FieldKey{PanelID: "p", Feature: "f"}, "7")
	for i := 0; i < 4; i++ {
		now = now.Add(40 * time.Minute)
		s, _ = b.Open(ctx, "x")
	}
	if v, _ := s.Get(ctx, FieldKey{PanelID: "p", Feature: "f"}); v != "7" {
		t.Fatalf("session touched every 40m expired: %q", v)
	}
}
