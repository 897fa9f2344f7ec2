package pool

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchemasSQL = `
SELECT nspname
FROM pg_catalog.pg_namespace
WHERE nspname NOT IN ('pg_catalog', 'information_schema')
  AND nspname NOT LIKE 'pg_toast%'
  AND nspname NOT LIKE 'pg_temp%'
ORDER BY nspname;
`

const postgresTablesSQL = `
SELECT c.relname
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1
  AND c.relkind IN ('r', 'p', 'v', 'm')
ORDER BY c.relname;
`

const postgresStatsSQL = `
SELECT count(*)::int, COALESCE(sum(pg_total_relation_size(c.oid)), 0)::bigint
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1
  AND c.relkind IN ('r', 'p');
`

type postgresPool struct {
	pool *pgxpool.Pool
}

func dialPostgres(ctx context.Context, cfg Config) (Pool, error) {
	dbname := cfg.DBName
	if dbname == "" {
		dbname = "postgres"
	}
	connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, dbname)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	// The active database of a postgres connection is a schema; scope every
	// session to it so unqualified names resolve there.
	if cfg.Database != "" {
		schema := strings.ReplaceAll(cfg.Database, `"`, `""`)
		poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if _, err := conn.Exec(ctx, fmt.Sprintf(`SET search_path = "%s"`, schema)); err != nil {
				return fmt.Errorf("failed to SET search_path: %w", err)
			}
			return nil
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return &postgresPool{pool: pool}, nil
}

func (p *postgresPool) Query(ctx context.Context, sql string) (*Result, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	return collectPgxRows(rows)
}

func (p *postgresPool) Exec(ctx context.Context, sql string) (int64, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, sql)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *postgresPool) Schemas(ctx context.Context) ([]string, error) {
	return p.stringColumn(ctx, postgresSchemasSQL)
}

func (p *postgresPool) Tables(ctx context.Context, database string) ([]string, error) {
	return p.stringColumn(ctx, postgresTablesSQL, database)
}

func (p *postgresPool) Stats(ctx context.Context, database string) (int, int64, error) {
	var tableCount int
	var sizeBytes int64
	if err := p.pool.QueryRow(ctx, postgresStatsSQL, database).Scan(&tableCount, &sizeBytes); err != nil {
		return 0, 0, fmt.Errorf("stats query failed: %w", err)
	}
	return tableCount, sizeBytes, nil
}

func (p *postgresPool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *postgresPool) Close() {
	p.pool.Close()
}

func (p *postgresPool) stringColumn(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// collectPgxRows reads all rows and normalizes values to JSON-friendly types.
func collectPgxRows(rows pgx.Rows) (*Result, error) {
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = convertPgxValue(values[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &Result{Columns: columns, Rows: resultRows}, nil
}

func convertPgxValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case float32:
		return convertFloat(float64(val))
	case float64:
		return convertFloat(val)
	case [16]byte:
		// UUID
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, item := range val {
			result[k] = convertPgxValue(item)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = convertPgxValue(item)
		}
		return result
	default:
		return val
	}
}

func convertFloat(f float64) any {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return f
}
