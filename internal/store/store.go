// Package store is the narrow persistence contract the execution core talks
// to: settings, connection records, and an append-only audit log. The core
// treats persistence mechanics as an external concern; FileStore is the
// minimal file-backed implementation a runnable server needs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/querygate/querygate/internal/classify"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// EncryptedSecret is a credential at rest: ciphertext, packed IV+salt, and a
// detached authentication tag, all base64-encoded. It is never compared,
// logged, or kept decrypted outside the pool-creation call path.
type EncryptedSecret struct {
	Ciphertext string `json:"ciphertext"`
	IVSalt     string `json:"iv_salt"`
	Tag        string `json:"tag"`
}

// Database is the per-database configuration under a connection.
type Database struct {
	Name        string        `json:"name"`
	Alias       string        `json:"alias,omitempty"`
	Enabled     bool          `json:"enabled"`
	Permissions classify.Grid `json:"permissions"`
}

// Connection is a configured link to one database server. ActiveDatabase
// names at most one entry of Databases.
type Connection struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Engine         string              `json:"engine"` // "postgres" or "mysql"
	Host           string              `json:"host"`
	Port           int                 `json:"port"`
	User           string              `json:"user"`
	DBName         string              `json:"dbname,omitempty"` // postgres: physical database in the DSN
	Secret         EncryptedSecret     `json:"secret"`
	Databases      map[string]Database `json:"databases"`
	ActiveDatabase string              `json:"active_database,omitempty"`
}

// LogEntry is one audit record. Request and Response are already sanitized
// by the time they reach the store.
type LogEntry struct {
	Time       time.Time `json:"time"`
	Identity   string    `json:"identity"`
	Endpoint   string    `json:"endpoint"`
	Method     string    `json:"method"`
	Request    any       `json:"request"`
	Response   any       `json:"response"`
	Status     int       `json:"status"`
	DurationMs int64     `json:"duration_ms"`
}

// Store is the persistence contract for the core.
type Store interface {
	// GetSetting returns the value for key, or "" when the key is absent.
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	ListConnections(ctx context.Context) ([]*Connection, error)
	// GetConnection returns ErrNotFound when no connection has the id.
	GetConnection(ctx context.Context, id string) (*Connection, error)
	// UpdateConnection inserts or replaces the record with conn.ID.
	UpdateConnection(ctx context.Context, conn *Connection) error

	// AppendLogEntry appends one audit record.
	AppendLogEntry(ctx context.Context, entry LogEntry) error
}
