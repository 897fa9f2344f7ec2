package querygate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/querygate/querygate/internal/pool"
	"github.com/querygate/querygate/internal/qerr"
	"github.com/querygate/querygate/internal/sanitize"
	"github.com/querygate/querygate/internal/session"
	"github.com/querygate/querygate/internal/store"
	"github.com/querygate/querygate/internal/vault"
)

// enabledSetting is the persisted feature switch gating both channels.
const enabledSetting = "mcp.enabled"

// Service is the core engine shared by the single-shot and streaming
// channels. It owns the pool cache, the credential vault, the session
// registry, and the audit path. All exported methods are safe for concurrent
// use from multiple goroutines.
type Service struct {
	config    Config
	store     store.Store
	vault     *vault.Vault
	pools     *pool.Manager
	sessions  *session.Registry
	sanitizer *sanitize.Sanitizer
	auth      Authenticator
	enabled   atomic.Bool
	logger    zerolog.Logger

	poolLifetime time.Duration
	poolIdleTime time.Duration
}

// New creates a Service over the given store and authenticator.
// Panics on invalid config. Returns an error only for runtime failures
// (store I/O, an unfinishable rotation journal).
func New(ctx context.Context, config Config, st store.Store, auth Authenticator, logger zerolog.Logger) (*Service, error) {
	if st == nil {
		panic("querygate: store must be non-nil")
	}
	if auth == nil {
		panic("querygate: authenticator must be non-nil")
	}
	if config.Pool.MaxConns <= 0 {
		panic("querygate: pool.max_conns must be > 0")
	}
	if config.Pool.MinConns < 0 {
		panic("querygate: pool.min_conns must be >= 0")
	}
	if config.Query.MaxSQLLength == 0 {
		config.Query.MaxSQLLength = 100000
	}
	if config.Query.MaxSQLLength < 0 {
		panic("querygate: query.max_sql_length must be > 0")
	}

	s := &Service{
		config:    config,
		store:     st,
		vault:     vault.New(st, logger),
		sessions:  session.NewRegistry(),
		sanitizer: sanitize.New(config.Audit.MaxEntryLength),
		auth:      auth,
		logger:    logger,
	}
	s.pools = pool.NewManager(s.openPool, logger)
	s.poolLifetime = parsePoolDuration("pool.max_conn_lifetime", config.Pool.MaxConnLifetime)
	s.poolIdleTime = parsePoolDuration("pool.max_conn_idle_time", config.Pool.MaxConnIdleTime)

	// A crash mid-rotation leaves a journal; finish it before serving.
	if err := s.vault.ResumeRotation(ctx); err != nil {
		return nil, fmt.Errorf("failed to resume master key rotation: %w", err)
	}

	enabled, err := st.GetSetting(ctx, enabledSetting)
	if err != nil {
		return nil, fmt.Errorf("failed to read feature switch: %w", err)
	}
	s.enabled.Store(enabled != "false")

	return s, nil
}

func parsePoolDuration(name, value string) time.Duration {
	if value == "" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		panic(fmt.Sprintf("querygate: invalid %s %q: %v", name, value, err))
	}
	return d
}

// Close releases every cached pool and waits for the releases to finish or
// for ctx to expire.
func (s *Service) Close(ctx context.Context) error {
	return s.pools.CloseAll(ctx)
}

// Enabled reports the feature switch state.
func (s *Service) Enabled() bool {
	return s.enabled.Load()
}

// SetEnabled flips the feature switch and persists it.
func (s *Service) SetEnabled(ctx context.Context, enabled bool) error {
	if err := s.store.SetSetting(ctx, enabledSetting, strconv.FormatBool(enabled)); err != nil {
		return fmt.Errorf("failed to persist feature switch: %w", err)
	}
	s.enabled.Store(enabled)
	return nil
}

// RecreatePool drops the cached pool for a connection; the next use rebuilds
// it. Call after credential or parameter changes.
func (s *Service) RecreatePool(id string) {
	s.pools.Recreate(id)
}

// openPool is the pool manager's build path: it is the only place a stored
// credential exists in decrypted form.
func (s *Service) openPool(ctx context.Context, id string) (pool.Pool, error) {
	conn, err := s.store.GetConnection(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, qerr.New(qerr.KindValidation, "unknown connection %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load connection %s: %w", id, err)
	}

	password, err := s.vault.DecryptCredential(ctx, conn.Secret)
	if err != nil {
		return nil, qerr.Wrap(qerr.KindConnectivity, err, "credential decrypt failed for connection %s", id)
	}

	return pool.Open(ctx, pool.Config{
		Engine:          pool.Engine(conn.Engine),
		Host:            conn.Host,
		Port:            conn.Port,
		User:            conn.User,
		Password:        password,
		DBName:          conn.DBName,
		Database:        conn.ActiveDatabase,
		MaxConns:        s.config.Pool.MaxConns,
		MinConns:        s.config.Pool.MinConns,
		MaxConnLifetime: s.poolLifetime,
		MaxConnIdleTime: s.poolIdleTime,
	})
}

// resolveConnection loads the addressed connection, defaulting to the only
// configured one when the id is omitted.
func (s *Service) resolveConnection(ctx context.Context, id string) (*store.Connection, error) {
	if id != "" {
		conn, err := s.store.GetConnection(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, qerr.New(qerr.KindValidation, "unknown connection %s", id)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load connection %s: %w", id, err)
		}
		return conn, nil
	}

	conns, err := s.store.ListConnections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	switch len(conns) {
	case 0:
		return nil, qerr.New(qerr.KindValidation, "no connections configured")
	case 1:
		return conns[0], nil
	default:
		return nil, qerr.New(qerr.KindValidation, "connection_id is required when multiple connections are configured")
	}
}
