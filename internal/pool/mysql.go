package pool

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

const mysqlSchemasSQL = `
SELECT schema_name
FROM information_schema.schemata
WHERE schema_name NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')
ORDER BY schema_name;
`

const mysqlTablesSQL = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = ?
ORDER BY table_name;
`

const mysqlStatsSQL = `
SELECT COUNT(*), COALESCE(SUM(data_length + index_length), 0)
FROM information_schema.tables
WHERE table_schema = ?;
`

type mysqlPool struct {
	db *sql.DB
}

func dialMySQL(cfg Config) (Pool, error) {
	mcfg := mysql.NewConfig()
	mcfg.User = cfg.User
	mcfg.Passwd = cfg.Password
	mcfg.Net = "tcp"
	mcfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mcfg.DBName = cfg.Database
	mcfg.ParseTime = true

	db, err := sql.Open("mysql", mcfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql pool: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	return &mysqlPool{db: db}, nil
}

func (p *mysqlPool) Query(ctx context.Context, query string) (*Result, error) {
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	resultRows := make([]map[string]any, 0)
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = convertMySQLValue(values[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &Result{Columns: columns, Rows: resultRows}, nil
}

func (p *mysqlPool) Exec(ctx context.Context, query string) (int64, error) {
	result, err := p.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		// Some statements (DDL through certain server versions) do not
		// report an affected-row count; the statement itself succeeded.
		return 0, nil
	}
	return affected, nil
}

func (p *mysqlPool) Schemas(ctx context.Context) ([]string, error) {
	return p.stringColumn(ctx, mysqlSchemasSQL)
}

func (p *mysqlPool) Tables(ctx context.Context, database string) ([]string, error) {
	return p.stringColumn(ctx, mysqlTablesSQL, database)
}

func (p *mysqlPool) Stats(ctx context.Context, database string) (int, int64, error) {
	var tableCount int
	var sizeBytes int64
	if err := p.db.QueryRowContext(ctx, mysqlStatsSQL, database).Scan(&tableCount, &sizeBytes); err != nil {
		return 0, 0, fmt.Errorf("stats query failed: %w", err)
	}
	return tableCount, sizeBytes, nil
}

func (p *mysqlPool) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *mysqlPool) Close() {
	p.db.Close()
}

func (p *mysqlPool) stringColumn(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
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

// convertMySQLValue normalizes driver values: the mysql driver hands back
// []byte for text-protocol results, which must become strings before they
// reach JSON encoding.
func convertMySQLValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	default:
		return v
	}
}
