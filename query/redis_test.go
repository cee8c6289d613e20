package query

import (
	"context"
	"os"
	"testing"
	"time"
)

// testRedis connects to ORCHCONSOLE_TEST_REDIS (default 127.0.0.1:6379, db 15)
// and skips the test when nothing answers.
func testRedis(t *testing.T) *RedisBackend {
	t.Helper()
	addr := os.Getenv("ORCHCONSOLE_TEST_REDIS")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rb, err := DialRedis(ctx, addr, "", 15, time.Minute)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	if err := rb.DeletePrefix(context.Background(), ""); err != nil {
		t.Fatalf("flush: %v", err)
	}
	t.Cleanup(func() {
		rb.DeletePrefix(context.Background(), "")
		rb.Close()
	})
	return rb
}

func TestRedisGetSet(t *testing.T) {
	rb := testRedis(t)
	ctx := context.Background()

	if _, _, ok, err := rb.Get(ctx, "task/1"); err != nil || ok {
		t.Fatalf("Get missing = ok %v err %v, want miss", ok, err)
	}
	at := time.Date(2024, 1, 1, 10, 0, 0, 123, time.UTC)
	if err := rb.Set(ctx, "task/1", []byte(`{"task_id":1}`), at); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, gotAt, ok, err := rb.Get(ctx, "task/1")
	if err != nil || !ok {
		t.Fatalf("Get = ok %v err %v, want hit", ok, err)
	}
	if string(data) != `{"task_id":1}` {
		t.Errorf("data = %s, want {\"task_id\":1}", data)
	}
	if !gotAt.Equal(at) {
		t.Errorf("at = %v, want %v", gotAt, at)
	}
}

func TestRedisInvalidatePrefix(t *testing.T) {
	rb := testRedis(t)
	c := New(Config{Backend: rb, StaleTime: time.Hour})
	ctx := context.Background()
	keys := []Key{
		{"tasks", "n1", "", "1", "10"},
		{"tasks", "n2", "", "1", "10"},
		{"task", "5"},
		{"task-logs", "5"},
		{"plugin", "a*b"},
		{"plugin", "axb"},
	}
	for _, k := range keys {
		k := k
		if _, err := Fetch(ctx, c, Query[string]{Key: k, Fn: func(context.Context) (string, error) { return k.String(), nil }}); err != nil {
			t.Fatalf("Fetch %s: %v", k, err)
		}
	}
	cached := func(k Key) bool {
		t.Helper()
		_, _, ok, err := rb.Get(ctx, k.String())
		if err != nil {
			t.Fatalf("Get %s: %v", k, err)
		}
		return ok
	}

	if err := c.Invalidate(ctx, "task"); err != nil {
		t.Fatalf("Invalidate task: %v", err)
	}
	if cached(Key{"task", "5"}) {
		t.Error("task/5 still cached")
	}
	for _, k := range []Key{keys[0], keys[1], keys[3]} {
		if !cached(k) {
			t.Errorf("%s dropped by task invalidation", k)
		}
	}

	if err := c.Invalidate(ctx, "tasks", "n1"); err != nil {
		t.Fatalf("Invalidate tasks/n1: %v", err)
	}
	if cached(keys[0]) {
		t.Error("tasks/n1 still cached")
	}
	if !cached(keys[1]) {
		t.Error("tasks/n2 dropped by tasks/n1 invalidation")
	}

	if err := c.Invalidate(ctx, "plugin", "a*b"); err != nil {
		t.Fatalf("Invalidate plugin/a*b: %v", err)
	}
	if cached(keys[4]) {
		t.Error("plugin/a*b still cached")
	}
	if !cached(keys[5]) {
		t.Error("plugin/axb matched a glob in the prefix")
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate all: %v", err)
	}
	for _, k := range keys {
		if cached(k) {
			t.Errorf("%s survived full invalidation", k)
		}
	}
}
