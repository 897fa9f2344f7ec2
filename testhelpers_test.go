package querygate

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/querygate/querygate/internal/classify"
	"github.com/querygate/querygate/internal/pool"
	"github.com/querygate/querygate/internal/store"
)

const (
	testToken    = "test-token-1"
	testIdentity = "ci"
)

// fakePool is a scripted pool.Pool used to test the pipeline without a
// database server.
type fakePool struct {
	mu sync.Mutex

	queryResult *pool.Result
	queryErr    error
	affected    int64
	execErr     error
	schemas     []string
	schemasErr  error
	tables      []string
	tablesErr   error
	statsCount  int
	statsBytes  int64
	statsErr    error

	queries []string
	execs   []string
	closed  bool
}

func (f *fakePool) Query(ctx context.Context, sql string) (*pool.Result, error) {
	f.mu.Lock()
	f.queries = append(f.queries, sql)
	f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.queryResult != nil {
		return f.queryResult, nil
	}
	return &pool.Result{Columns: []string{}, Rows: []map[string]any{}}, nil
}

func (f *fakePool) Exec(ctx context.Context, sql string) (int64, error) {
	f.mu.Lock()
	f.execs = append(f.execs, sql)
	f.mu.Unlock()
	return f.affected, f.execErr
}

func (f *fakePool) Schemas(ctx context.Context) ([]string, error) {
	return f.schemas, f.schemasErr
}

func (f *fakePool) Tables(ctx context.Context, database string) ([]string, error) {
	return f.tables, f.tablesErr
}

func (f *fakePool) Stats(ctx context.Context, database string) (int, int64, error) {
	return f.statsCount, f.statsBytes, f.statsErr
}

func (f *fakePool) Ping(ctx context.Context) error { return nil }

func (f *fakePool) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// testEnv bundles a Service wired to a fake pool and the file store backing
// it, so tests can inspect persisted state and the audit log.
type testEnv struct {
	service *Service
	store   *store.FileStore
	pool    *fakePool
	dir     string
	opens   atomic.Int64
}

func newTestEnv(t *testing.T, config Config) *testEnv {
	t.Helper()

	if config.Pool.MaxConns == 0 {
		config.Pool.MaxConns = 5
	}

	dir := t.TempDir()
	st, err := store.NewFileStore(dir)
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}

	auth := NewTokenAuthenticator([]TokenEntry{{Token: testToken, Identity: testIdentity}})
	s, err := New(context.Background(), config, st, auth, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	env := &testEnv{service: s, store: st, pool: &fakePool{}, dir: dir}
	s.pools = pool.NewManager(func(ctx context.Context, id string) (pool.Pool, error) {
		env.opens.Add(1)
		return env.pool, nil
	}, zerolog.Nop())
	return env
}

// seedConnection stores a connection with one enabled active database
// carrying the given permission grid.
func (env *testEnv) seedConnection(t *testing.T, id string, grid classify.Grid) *store.Connection {
	t.Helper()
	conn := &store.Connection{
		ID:     id,
		Name:   "test " + id,
		Engine: "postgres",
		Host:   "localhost",
		Port:   5432,
		User:   "app",
		Databases: map[string]store.Database{
			"public": {Name: "public", Enabled: true, Permissions: grid},
		},
		ActiveDatabase: "public",
	}
	if err := env.store.UpdateConnection(context.Background(), conn); err != nil {
		t.Fatalf("failed to seed connection: %v", err)
	}
	return conn
}

// auditEntries reads every record from the on-disk audit log.
func (env *testEnv) auditEntries(t *testing.T) []store.LogEntry {
	t.Helper()
	f, err := os.Open(filepath.Join(env.dir, "audit.log"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("failed to open audit log: %v", err)
	}
	defer f.Close()

	var entries []store.LogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry store.LogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("failed to parse audit entry: %v", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("failed to read audit log: %v", err)
	}
	return entries
}

func selectOnlyGrid() classify.Grid {
	return classify.Grid{Select: true}
}
