package querygate

import "github.com/querygate/querygate/internal/classify"

// QueryInput is the input for the query operation on both channels.
// ConnectionID may be empty when exactly one connection is configured.
type QueryInput struct {
	ConnectionID string `json:"connection_id,omitempty"`
	SQL          string `json:"sql"`
}

// QueryOutput is the normalized result of an authorized statement.
// RowCount is the number of returned rows for reads and the number of
// affected rows for writes.
type QueryOutput struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int64            `json:"row_count"`
	Duration string           `json:"duration"`
}

// ListDatabasesInput is the input for the database listing operation.
type ListDatabasesInput struct {
	ConnectionID string `json:"connection_id,omitempty"`
}

// DatabaseInfo describes one discoverable database. TableCount and Size are
// nil/empty when metadata lookup failed and the entry degraded to basic info.
type DatabaseInfo struct {
	Name        string        `json:"name"`
	Alias       string        `json:"alias"`
	Enabled     bool          `json:"enabled"`
	Permissions classify.Grid `json:"permissions"`
	TableCount  *int          `json:"table_count,omitempty"`
	Size        string        `json:"size,omitempty"`
}

// ListTablesInput is the input for the table listing operation. Database
// defaults to the connection's active database.
type ListTablesInput struct {
	ConnectionID string `json:"connection_id,omitempty"`
	Database     string `json:"database,omitempty"`
}

// ListTablesOutput is the output of the table listing operation.
type ListTablesOutput struct {
	Database string   `json:"database"`
	Tables   []string `json:"tables"`
}

// TestConnectionInput carries the parameters for a pre-save connectivity
// test. Password is plaintext and is never persisted by this operation.
type TestConnectionInput struct {
	Engine   string `json:"engine"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname,omitempty"`
}

// TestConnectionOutput reports round-trip latency and the discoverable
// non-system schemas.
type TestConnectionOutput struct {
	LatencyMs int64    `json:"latency_ms"`
	Schemas   []string `json:"schemas"`
}
