package querygate

// Config is the core configuration used by library mode via New().
type Config struct {
	Pool  PoolConfig  `json:"pool"`
	Query QueryConfig `json:"query"`
	Audit AuditConfig `json:"audit"`
}

// ServerConfig embeds Config and adds server-only fields for CLI mode.
type ServerConfig struct {
	Config
	Server   ServerSettings `json:"server"`
	Logging  LoggingConfig  `json:"logging"`
	Auth     AuthConfig     `json:"auth"`
	StoreDir string         `json:"store_dir"`
}

// PoolConfig holds connection pool settings applied to every managed
// connection. Excess demand queues inside the pool rather than being
// rejected; no additional timeout is imposed at this layer.
type PoolConfig struct {
	MaxConns        int    `json:"max_conns"`
	MinConns        int    `json:"min_conns"`
	MaxConnLifetime string `json:"max_conn_lifetime"`
	MaxConnIdleTime string `json:"max_conn_idle_time"`
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	MaxSQLLength int `json:"max_sql_length"`
}

// AuditConfig holds audit log settings.
type AuditConfig struct {
	// MaxEntryLength caps the serialized size of each sanitized request and
	// response payload. Zero selects the default.
	MaxEntryLength int `json:"max_entry_length"`
}

// ServerSettings holds HTTP server settings for CLI mode.
type ServerSettings struct {
	Port               int    `json:"port"`
	HealthCheckEnabled bool   `json:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path"`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, stderr, or file path
}

// AuthConfig lists the bearer credentials accepted by both channels.
type AuthConfig struct {
	Tokens []TokenEntry `json:"tokens"`
}

// TokenEntry maps a bearer token to the identity recorded in the audit log.
type TokenEntry struct {
	Token    string `json:"token"`
	Identity string `json:"identity"`
}
