package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeStore struct {
	values map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func TestRedisLockAcquireRelease(t *testing.T) {
	store := newFakeStore()
	lock, err := NewRedisLock(store, "fundi:test:lock", time.Minute)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}

	held, err := lock.Acquire(context.Background())
	if err != nil || !held {
		t.Fatalf("expected first acquire to succeed, held=%v err=%v", held, err)
	}

	other, err := NewRedisLock(store, "fundi:test:lock", time.Minute)
	if err != nil {
		t.Fatalf("construct second lock: %v", err)
	}
	held, err = other.Acquire(context.Background())
	if err != nil || held {
		t.Fatalf("expected second acquire to fail, held=%v err=%v", held, err)
	}

	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok := store.values["fundi:test:lock"]; ok {
		t.Fatal("release did not delete the key")
	}
}

func TestRedisLockReleaseLeavesForeignToken(t *testing.T) {
	store := newFakeStore()
	lock, err := NewRedisLock(store, "fundi:test:lock", time.Minute)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}
	if _, err := lock.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// simulate lease expiry followed by another replica taking the key
	store.values["fundi:test:lock"] = "someone-else"

	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["fundi:test:lock"] != "someone-else" {
		t.Fatal("release deleted a lock owned by another replica")
	}
}

func TestRedisLockReleaseWithoutAcquireIsNoop(t *testing.T) {
	store := newFakeStore()
	lock, err := NewRedisLock(store, "fundi:test:lock", time.Minute)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
}
