// Package pool manages pooled database handles per connection id. A handle
// moves absent → probing → ready: it is built lazily on first use, validated
// with one throwaway connection, and cached until closed or recreated. Both
// engines bound concurrent connections and queue excess demand rather than
// rejecting it; this layer adds no timeout of its own.
package pool

import (
	"context"
	"time"

	"github.com/querygate/querygate/internal/qerr"
)

// Engine selects the back-end driver.
type Engine string

const (
	EnginePostgres Engine = "postgres"
	EngineMySQL    Engine = "mysql"
)

// systemSchemas are excluded from discovery per engine.
var systemSchemas = map[Engine][]string{
	EnginePostgres: {"pg_catalog", "information_schema", "pg_toast"},
	EngineMySQL:    {"mysql", "information_schema", "performance_schema", "sys"},
}

// Config holds everything needed to dial one database server.
type Config struct {
	Engine   Engine
	Host     string
	Port     int
	User     string
	Password string
	// DBName is the physical database in the DSN (postgres only; the managed
	// databases of a postgres connection are its schemas).
	DBName string
	// Database is the active database/schema queries run against.
	Database string

	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Result is the normalized shape of a row-returning statement.
type Result struct {
	Columns []string
	Rows    []map[string]any
}

// Pool is one ready handle to a database server.
type Pool interface {
	// Query runs a row-returning statement.
	Query(ctx context.Context, sql string) (*Result, error)
	// Exec runs a non-row-returning statement and reports affected rows.
	Exec(ctx context.Context, sql string) (int64, error)
	// Schemas lists non-system schemas.
	Schemas(ctx context.Context) ([]string, error)
	// Tables lists tables and views in the named database/schema.
	Tables(ctx context.Context, database string) ([]string, error)
	// Stats returns table count and aggregate stored size in bytes for the
	// named database/schema.
	Stats(ctx context.Context, database string) (int, int64, error)
	Ping(ctx context.Context) error
	Close()
}

// Open dials a server and validates reachability with one throwaway
// connection. On probe failure the pool is disposed and a connectivity error
// returned.
func Open(ctx context.Context, cfg Config) (Pool, error) {
	p, err := dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, qerr.Wrap(qerr.KindConnectivity, err, "connectivity probe failed for %s:%d", cfg.Host, cfg.Port)
	}
	return p, nil
}

func dial(ctx context.Context, cfg Config) (Pool, error) {
	switch cfg.Engine {
	case EnginePostgres:
		return dialPostgres(ctx, cfg)
	case EngineMySQL:
		return dialMySQL(cfg)
	default:
		return nil, qerr.New(qerr.KindValidation, "unsupported engine %q", cfg.Engine)
	}
}

// TestResult is the outcome of a one-shot, uncached connectivity test.
type TestResult struct {
	Latency time.Duration
	Schemas []string
}

// Test dials with the given config, times one round trip, and lists the
// discoverable non-system schemas. Nothing is cached; the handle is torn
// down before returning.
func Test(ctx context.Context, cfg Config) (*TestResult, error) {
	p, err := dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		return nil, qerr.Wrap(qerr.KindConnectivity, err, "connection test failed for %s:%d", cfg.Host, cfg.Port)
	}
	latency := time.Since(start)

	schemas, err := p.Schemas(ctx)
	if err != nil {
		return nil, qerr.Wrap(qerr.KindConnectivity, err, "schema discovery failed for %s:%d", cfg.Host, cfg.Port)
	}
	return &TestResult{Latency: latency, Schemas: schemas}, nil
}
