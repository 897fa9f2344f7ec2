package querygate

import (
	"context"
	"errors"
	"testing"

	"github.com/querygate/querygate/internal/classify"
	"github.com/querygate/querygate/internal/qerr"
	"github.com/querygate/querygate/internal/store"
)

func TestListDatabases(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, Config{})
	conn := env.seedConnection(t, "c1", selectOnlyGrid())
	conn.Databases["reporting"] = store.Database{Name: "reporting", Enabled: false}
	conn.Databases["public"] = store.Database{
		Name:        "public",
		Alias:       "main",
		Enabled:     true,
		Permissions: classify.Grid{Select: true, Insert: true},
	}
	if err := env.store.UpdateConnection(context.Background(), conn); err != nil {
		t.Fatalf("failed to update connection: %v", err)
	}
	env.pool.schemas = []string{"public", "reporting", "scratch"}
	env.pool.statsCount = 7
	env.pool.statsBytes = 1536

	infos, err := env.service.ListDatabases(context.Background(), ListDatabasesInput{})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 databases (disabled entry hidden), got %d: %+v", len(infos), infos)
	}

	byName := map[string]DatabaseInfo{}
	for _, info := range infos {
		byName[info.Name] = info
	}

	public, ok := byName["public"]
	if !ok {
		t.Fatal("expected public in the listing")
	}
	if !public.Enabled || public.Alias != "main" || !public.Permissions.Select || !public.Permissions.Insert {
		t.Fatalf("unexpected public entry: %+v", public)
	}
	if public.TableCount == nil || *public.TableCount != 7 {
		t.Fatalf("expected table count 7, got %+v", public.TableCount)
	}
	if public.Size != "1.5 KB" {
		t.Fatalf("expected size 1.5 KB, got %q", public.Size)
	}

	// Discovered but unconfigured: visible, disabled, nothing granted.
	scratch, ok := byName["scratch"]
	if !ok {
		t.Fatal("expected scratch in the listing")
	}
	if scratch.Enabled {
		t.Fatal("unconfigured database must not be enabled")
	}
	if scratch.Permissions != (classify.Grid{}) {
		t.Fatalf("unconfigured database must carry a zero grid, got %+v", scratch.Permissions)
	}
	if scratch.Alias != "scratch" {
		t.Fatalf("alias should fall back to the name, got %q", scratch.Alias)
	}

	if _, ok := byName["reporting"]; ok {
		t.Fatal("configured-but-disabled database must be hidden")
	}
}

func TestListDatabasesDegradesOnMetadataFailure(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, Config{})
	env.seedConnection(t, "c1", selectOnlyGrid())
	env.pool.schemas = []string{"public"}
	env.pool.statsErr = errors.New("stats query timed out")

	infos, err := env.service.ListDatabases(context.Background(), ListDatabasesInput{})
	if err != nil {
		t.Fatalf("metadata failure must not fail the listing: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 database, got %d", len(infos))
	}
	if infos[0].TableCount != nil || infos[0].Size != "" {
		t.Fatalf("expected degraded entry without metadata, got %+v", infos[0])
	}
}

func TestListDatabasesDiscoveryFailure(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, Config{})
	env.seedConnection(t, "c1", selectOnlyGrid())
	env.pool.schemasErr = errors.New("connection reset")

	_, err := env.service.ListDatabases(context.Background(), ListDatabasesInput{})
	if !qerr.Is(err, qerr.KindConnectivity) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
}

func TestListTablesDefaultsToActiveDatabase(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, Config{})
	env.seedConnection(t, "c1", selectOnlyGrid())
	env.pool.tables = []string{"users", "orders"}

	output, err := env.service.ListTables(context.Background(), ListTablesInput{})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if output.Database != "public" {
		t.Fatalf("expected the active database, got %q", output.Database)
	}
	if len(output.Tables) != 2 {
		t.Fatalf("expected 2 tables, got %v", output.Tables)
	}
}

func TestListTablesDisabledDatabase(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, Config{})
	conn := env.seedConnection(t, "c1", selectOnlyGrid())
	conn.Databases["reporting"] = store.Database{Name: "reporting", Enabled: false}
	if err := env.store.UpdateConnection(context.Background(), conn); err != nil {
		t.Fatalf("failed to update connection: %v", err)
	}

	_, err := env.service.ListTables(context.Background(), ListTablesInput{Database: "reporting"})
	if !qerr.Is(err, qerr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDatabaseExists(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, Config{})
	conn := env.seedConnection(t, "c1", selectOnlyGrid())
	conn.Databases["reporting"] = store.Database{Name: "reporting", Enabled: false}
	if err := env.store.UpdateConnection(context.Background(), conn); err != nil {
		t.Fatalf("failed to update connection: %v", err)
	}
	env.pool.schemas = []string{"public", "reporting", "scratch"}

	tests := []struct {
		name string
		want bool
	}{
		{"public", true},
		{"scratch", true},
		{"reporting", false}, // configured as disabled
		{"missing", false},
	}
	for _, tt := range tests {
		got, err := env.service.DatabaseExists(context.Background(), "c1", tt.name)
		if err != nil {
			t.Fatalf("DatabaseExists(%q) failed: %v", tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("DatabaseExists(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestTestConnectionValidation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, Config{})

	_, err := env.service.TestConnection(context.Background(), TestConnectionInput{Port: 5432})
	if !qerr.Is(err, qerr.KindValidation) {
		t.Fatalf("expected validation error for empty host, got %v", err)
	}

	_, err = env.service.TestConnection(context.Background(), TestConnectionInput{Host: "localhost"})
	if !qerr.Is(err, qerr.KindValidation) {
		t.Fatalf("expected validation error for missing port, got %v", err)
	}
}

func TestFormatBytes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1048576, "1 MB"},
		{1073741824, "1 GB"},
		{5 * 1024 * 1024 * 1024, "5 GB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.bytes); got != tt.want {
			t.Fatalf("formatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}
