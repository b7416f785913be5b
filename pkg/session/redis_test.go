package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisBackend(t *testing.T) {
	_, client := newTestRedis(t)
	exerciseBackend(t, NewRedisBackend(client, "test:", time.Hour))
}

func TestRedisLayoutAndTTL(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	b := NewRedisBackend(client, "pf:", time.Minute)

	s, err := b.Open(ctx, "abc")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set(ctx, FieldKey{PanelID: "heart", Feature: "age"}, "54"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := mr.HGet("pf:session:abc", "field:heart|age"); got != "54" {
		t.Fatalf("unexpected stored value %q", got)
	}
	if ttl := mr.TTL("pf:session:abc"); ttl != time.Minute {
		t.Fatalf("expected ttl refresh to 1m, got %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if v, _ := s.Get(ctx, FieldKey{PanelID: "heart", Feature: "age"}); v != "" {
		t.Fatalf("expected expired session to read empty, got %q", v)
	}
}

func TestRedisPingFailure(t *testing.T) {
	mr, client := newTestRedis(t)
	b := NewRedisBackend(client, "", 0)
	mr.Close()
	if err := b.Ping(context.Background()); err == nil {
		t.Fatal("expected ping to fail once redis is gone")
	}
}
