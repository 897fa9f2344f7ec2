package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	documentFile = "store.json"
	auditFile    = "audit.log"
)

type document struct {
	Settings    map[string]string `json:"settings"`
	Connections []*Connection     `json:"connections"`
}

// FileStore persists settings and connections as one JSON document and the
// audit log as one JSON line per entry. Safe for concurrent use.
type FileStore struct {
	mu  sync.Mutex
	dir string
	doc document
}

// NewFileStore opens (or creates) a file store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}
	fs := &FileStore{dir: dir, doc: document{Settings: map[string]string{}}}

	data, err := os.ReadFile(filepath.Join(dir, documentFile))
	if os.IsNotExist(err) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store document: %w", err)
	}
	if err := json.Unmarshal(data, &fs.doc); err != nil {
		return nil, fmt.Errorf("failed to parse store document: %w", err)
	}
	if fs.doc.Settings == nil {
		fs.doc.Settings = map[string]string{}
	}
	return fs, nil
}

// flush writes the document; callers hold fs.mu.
func (fs *FileStore) flush() error {
	data, err := json.MarshalIndent(fs.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store document: %w", err)
	}
	path := filepath.Join(fs.dir, documentFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write store document: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace store document: %w", err)
	}
	return nil
}

func (fs *FileStore) GetSetting(ctx context.Context, key string) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.doc.Settings[key], nil
}

func (fs *FileStore) SetSetting(ctx context.Context, key, value string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if value == "" {
		delete(fs.doc.Settings, key)
	} else {
		fs.doc.Settings[key] = value
	}
	return fs.flush()
}

func (fs *FileStore) ListConnections(ctx context.Context) ([]*Connection, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	result := make([]*Connection, len(fs.doc.Connections))
	for i, conn := range fs.doc.Connections {
		result[i] = cloneConnection(conn)
	}
	return result, nil
}

func (fs *FileStore) GetConnection(ctx context.Context, id string) (*Connection, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, conn := range fs.doc.Connections {
		if conn.ID == id {
			return cloneConnection(conn), nil
		}
	}
	return nil, ErrNotFound
}

func (fs *FileStore) UpdateConnection(ctx context.Context, conn *Connection) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	replaced := false
	for i, existing := range fs.doc.Connections {
		if existing.ID == conn.ID {
			fs.doc.Connections[i] = cloneConnection(conn)
			replaced = true
			break
		}
	}
	if !replaced {
		fs.doc.Connections = append(fs.doc.Connections, cloneConnection(conn))
	}
	return fs.flush()
}

func (fs *FileStore) AppendLogEntry(ctx context.Context, entry LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, err := os.OpenFile(filepath.Join(fs.dir, auditFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// cloneConnection deep-copies a record so callers cannot mutate stored state.
func cloneConnection(conn *Connection) *Connection {
	c := *conn
	c.Databases = make(map[string]Database, len(conn.Databases))
	for name, db := range conn.Databases {
		c.Databases[name] = db
	}
	return &c
}
