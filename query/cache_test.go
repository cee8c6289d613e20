package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKeyString(t *testing.T) {
	k := NewKey("tasks", "node/1", "", 2, 10)
	if got, want := k.String(), "tasks/node%2F1//2/10"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if !k.HasPrefix(Key{"tasks"}) {
		t.Error("HasPrefix(tasks) = false")
	}
	if (Key{"task", "1"}).HasPrefix(Key{"tasks"}) {
		t.Error("task matched tasks")
	}
	if NewKey("tasks", "a", "").String() == NewKey("tasks", "", "a").String() {
		t.Error("distinct filters collide")
	}
}

func TestFetchDisabled(t *testing.T) {
	c := New(Config{})
	called := false
	_, err := Fetch(context.Background(), c, Query[int]{
		Key:      Key{"tasks"},
		Disabled: true,
		Fn: func(context.Context) (int, error) {
			called = true
			return 1, nil
		},
	})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("err = %v, want ErrDisabled", err)
	}
	if called {
		t.Error("disabled query ran")
	}
}

func TestFetchRetriesOnce(t *testing.T) {
	c := New(Config{})
	var calls int32
	v, err := Fetch(context.Background(), c, Query[string]{
		Key: Key{"plugins"},
		Fn: func(context.Context) (string, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				return "", errors.New("boom")
			}
			return "ok", nil
		},
	})
	if err != nil || v != "ok" {
		t.Fatalf("Fetch = %q, %v; want ok, nil", v, err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}

	calls = 0
	_, err = Fetch(context.Background(), c, Query[string]{
		Key: Key{"plugins", "x"},
		Fn: func(context.Context) (string, error) {
			atomic.AddInt32(&calls, 1)
			return "", errors.New("down")
		},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want exactly 2", calls)
	}
}

func TestFetchCancelledNotRetried(t *testing.T) {
	c := New(Config{})
	var calls int32
	_, err := Fetch(context.Background(), c, Query[int]{
		Key: Key{"agents"},
		Fn: func(context.Context) (int, error) {
			atomic.AddInt32(&calls, 1)
			return 0, context.Canceled
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestFetchStaleTime(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(Config{StaleTime: time.Minute, Now: func() time.Time { return now }})
	var calls int32
	q := Query[int]{
		Key: Key{"plugins"},
		Fn: func(context.Context) (int, error) {
			return int(atomic.AddInt32(&calls, 1)), nil
		},
	}

	for i := 0; i < 3; i++ {
		v, err := Fetch(context.Background(), c, q)
		if err != nil || v != 1 {
			t.Fatalf("Fetch %d = %d, %v; want 1, nil", i, v, err)
		}
	}

	now = now.Add(2 * time.Minute)
	if v, _ := Fetch(context.Background(), c, q); v != 2 {
		t.Errorf("after stale time Fetch = %d, want 2", v)
	}

	c.SetStaleTime(0)
	if v, _ := Fetch(context.Background(), c, q); v != 3 {
		t.Errorf("with zero stale time Fetch = %d, want 3", v)
	}
}

func TestFetchDedup(t *testing.T) {
	c := New(Config{})
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	q := Query[int]{
		Key: Key{"tasks", "n1"},
		Fn: func(context.Context) (int, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				close(started)
			}
			<-release
			return 7, nil
		},
	}

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Fetch(context.Background(), c, q)
		}(i)
	}
	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	for i, v := range results {
		if v != 7 {
			t.Errorf("results[%d] = %d, want 7", i, v)
		}
	}
}

func TestInvalidatePrefix(t *testing.T) {
	mem := NewMemoryBackend()
	c := New(Config{Backend: mem, StaleTime: time.Hour})
	ctx := context.Background()
	for _, k := range []Key{
		{"tasks", "n1", "", "1", "10"},
		{"tasks", "n2", "", "1", "10"},
		{"task", "5"},
		{"task-logs", "5"},
	} {
		k := k
		Fetch(ctx, c, Query[string]{Key: k, Fn: func(context.Context) (string, error) { return k.String(), nil }})
	}
	if mem.Len() != 4 {
		t.Fatalf("Len = %d, want 4", mem.Len())
	}

	if err := c.Invalidate(ctx, "task"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if mem.Len() != 3 {
		t.Errorf("Len after invalidating task = %d, want 3", mem.Len())
	}
	if _, _, ok, _ := mem.Get(ctx, "task/5"); ok {
		t.Error("task/5 still cached")
	}

	c.Invalidate(ctx, "tasks", "n1")
	if _, _, ok, _ := mem.Get(ctx, "tasks/n2//1/10"); !ok {
		t.Error("tasks/n2 dropped by tasks/n1 invalidation")
	}

	c.Invalidate(ctx)
	if mem.Len() != 0 {
		t.Errorf("Len after full invalidation = %d, want 0", mem.Len())
	}
}

func TestInvalidateRefetches(t *testing.T) {
	c := New(Config{StaleTime: time.Hour})
	ctx := context.Background()
	items := []string{"a", "b"}
	q := Query[[]string]{
		Key: Key{"plugins"},
		Fn: func(context.Context) ([]string, error) {
			return append([]string(nil), items...), nil
		},
	}
	got, _ := Fetch(ctx, c, q)
	if len(got) != 2 {
		t.Fatalf("first Fetch = %v", got)
	}

	items = items[:1]
	got, _ = Fetch(ctx, c, q)
	if len(got) != 2 {
		t.Fatalf("fresh entry not served: %v", got)
	}

	c.Invalidate(ctx, "plugins")
	got, _ = Fetch(ctx, c, q)
	if len(got) != 1 {
		t.Errorf("after invalidation Fetch = %v, want [a]", got)
	}
}

func TestLateFetchDoesNotOverwrite(t *testing.T) {
	mem := NewMemoryBackend()
	c := New(Config{Backend: mem, StaleTime: time.Hour})
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan int)
	go func() {
		v, _ := Fetch(ctx, c, Query[int]{
			Key: Key{"agents", "", "1", "10"},
			Fn: func(context.Context) (int, error) {
				close(started)
				<-release
				return 1, nil
			},
		})
		done <- v
	}()

	<-started
	c.Invalidate(ctx, "agents")
	close(release)
	if v := <-done; v != 1 {
		t.Errorf("late caller got %d, want 1", v)
	}
	if mem.Len() != 0 {
		t.Error("late result was stored after invalidation")
	}
}

func TestSubscribe(t *testing.T) {
	c := New(Config{})
	var got []string
	id := c.Subscribe(Key{"tasks"}, func(p Key) { got = append(got, p.String()) })
	c.Subscribe(Key{"agents"}, func(p Key) { t.Errorf("agents subscriber called for %s", p) })

	ctx := context.Background()
	c.Invalidate(ctx, "tasks")
	c.Invalidate(ctx, "tasks", "n1")
	c.Invalidate(ctx, "task")
	c.Unsubscribe(id)
	c.Invalidate(ctx, "tasks")

	want := []string{"tasks", "tasks/n1"}
	if len(got) != len(want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notification %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFetchCallerCancel(t *testing.T) {
	c := New(Config{})
	release := make(chan struct{})
	defer close(release)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Fetch(ctx, c, Query[int]{
		Key: Key{"plugin", "slow"},
		Fn: func(context.Context) (int, error) {
			<-release
			return 1, nil
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
