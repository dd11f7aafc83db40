package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"incident-quiz/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestLockExcludesSecondHolder(t *testing.T) {
	_, client := newTestClient(t)
	lock := NewLock(client)
	ctx := context.Background()

	token, ok, err := lock.Acquire(ctx, "renotify", time.Minute)
	if err != nil || !ok || token == "" {
		t.Fatalf("first acquire: token=%q ok=%v err=%v", token, ok, err)
	}
	if _, ok, err := lock.Acquire(ctx, "renotify", time.Minute); err != nil || ok {
		t.Fatalf("second acquire must fail while held: ok=%v err=%v", ok, err)
	}

	if err := lock.Release(ctx, "renotify", token); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, err := lock.Acquire(ctx, "renotify", time.Minute); err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
}

func TestLockReleaseKeepsNewHolder(t *testing.T) {
	mr, client := newTestClient(t)
	lock := NewLock(client)
	ctx := context.Background()

	first, ok, err := lock.Acquire(ctx, "renotify", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	// The first holder outlives its ttl and a second one takes over.
	mr.FastForward(2 * time.Minute)
	second, ok, err := lock.Acquire(ctx, "renotify", time.Minute)
	if err != nil || !ok {
		t.Fatalf("second acquire: ok=%v err=%v", ok, err)
	}

	if err := lock.Release(ctx, "renotify", first); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if got, err := mr.Get("lock:renotify"); err != nil || got != second {
		t.Fatalf("expected the second holder to keep the lock, got %q (%v)", got, err)
	}
	if _, ok, err := lock.Acquire(ctx, "renotify", time.Minute); err != nil || ok {
		t.Fatalf("third acquire must fail while the second holder runs: ok=%v err=%v", ok, err)
	}
}

func TestTemplateCache(t *testing.T) {
	_, client := newTestClient(t)
	c := NewRedisCache(client, time.Hour)
	ctx := context.Background()

	if _, err := c.GetTemplate(ctx, 3); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected a miss, got %v", err)
	}

	tpl := &models.QuizTemplate{ID: 9, CategoryID: 3, Name: "Malware quiz"}
	if err := c.SetTemplate(ctx, tpl); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := c.GetTemplate(ctx, 3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != 9 || got.Name != "Malware quiz" {
		t.Fatalf("unexpected template %+v", got)
	}

	if err := c.DeleteTemplate(ctx, 3); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.GetTemplate(ctx, 3); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected a miss after delete, got %v", err)
	}
}
