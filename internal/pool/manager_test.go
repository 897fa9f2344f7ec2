package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakePool implements Pool without any network I/O.
type fakePool struct {
	id     string
	closed atomic.Bool
}

func (f *fakePool) Query(ctx context.Context, sql string) (*Result, error) {
	return &Result{Columns: []string{"id"}, Rows: []map[string]any{{"id": f.id}}}, nil
}
func (f *fakePool) Exec(ctx context.Context, sql string) (int64, error) { return 0, nil }
func (f *fakePool) Schemas(ctx context.Context) ([]string, error)       { return nil, nil }
func (f *fakePool) Tables(ctx context.Context, db string) ([]string, error) {
	return nil, nil
}
func (f *fakePool) Stats(ctx context.Context, db string) (int, int64, error) { return 0, 0, nil }
func (f *fakePool) Ping(ctx context.Context) error                           { return nil }
func (f *fakePool) Close()                                                   { f.closed.Store(true) }

func TestGetCachesPool(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var opens atomic.Int32
	m := NewManager(func(ctx context.Context, id string) (Pool, error) {
		opens.Add(1)
		return &fakePool{id: id}, nil
	}, zerolog.Nop())

	p1, err := m.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}
	p2, err := m.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if p1 != p2 {
		t.Fatal("consecutive Gets must return the identical cached pool")
	}
	if opens.Load() != 1 {
		t.Fatalf("expected exactly one open, got %d", opens.Load())
	}
}

func TestFailedOpenLeavesAbsent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var opens atomic.Int32
	fail := atomic.Bool{}
	fail.Store(true)
	m := NewManager(func(ctx context.Context, id string) (Pool, error) {
		opens.Add(1)
		if fail.Load() {
			return nil, errors.New("unreachable")
		}
		return &fakePool{id: id}, nil
	}, zerolog.Nop())

	if _, err := m.Get(ctx, "c1"); err == nil {
		t.Fatal("expected error from failed open")
	}
	fail.Store(false)
	if _, err := m.Get(ctx, "c1"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if opens.Load() != 2 {
		t.Fatalf("expected 2 opens, got %d", opens.Load())
	}
}

func TestRecreateDropsCachedPool(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var opens atomic.Int32
	m := NewManager(func(ctx context.Context, id string) (Pool, error) {
		opens.Add(1)
		return &fakePool{id: id}, nil
	}, zerolog.Nop())

	p1, _ := m.Get(ctx, "c1")
	m.Recreate("c1")
	if !p1.(*fakePool).closed.Load() {
		t.Fatal("recreate must close the old pool")
	}
	p2, err := m.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get after recreate: %v", err)
	}
	if p1 == p2 {
		t.Fatal("recreate must yield a fresh pool on next Get")
	}
	if opens.Load() != 2 {
		t.Fatalf("expected 2 opens, got %d", opens.Load())
	}
}

func TestCloseAllReleasesEverything(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewManager(func(ctx context.Context, id string) (Pool, error) {
		return &fakePool{id: id}, nil
	}, zerolog.Nop())

	pools := make([]*fakePool, 0, 3)
	for _, id := range []string{"a", "b", "c"} {
		p, err := m.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		pools = append(pools, p.(*fakePool))
	}
	if err := m.CloseAll(ctx); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	for _, p := range pools {
		if !p.closed.Load() {
			t.Fatalf("pool %s not closed", p.id)
		}
	}
}

// slowPool blocks Close until released, to exercise the CloseAll deadline.
type slowPool struct {
	fakePool
	release chan struct{}
}

func (s *slowPool) Close() {
	<-s.release
	s.fakePool.Close()
}

func TestCloseAllHonorsContext(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	slow := &slowPool{release: make(chan struct{})}
	m := NewManager(func(ctx context.Context, id string) (Pool, error) {
		return slow, nil
	}, zerolog.Nop())
	if _, err := m.Get(ctx, "stuck"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	deadline, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := m.CloseAll(deadline); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	close(slow.release)
}

func TestConcurrentGetSingleOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var opens atomic.Int32
	m := NewManager(func(ctx context.Context, id string) (Pool, error) {
		opens.Add(1)
		time.Sleep(5 * time.Millisecond)
		return &fakePool{id: id}, nil
	}, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Get(ctx, "c1"); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}
	wg.Wait()
	if opens.Load() != 1 {
		t.Fatalf("expected a single open under concurrency, got %d", opens.Load())
	}
}
