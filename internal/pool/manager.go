package pool

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// OpenFunc builds a ready pool for a connection id. The caller supplies it so
// credential lookup and decryption stay on the pool-creation path only.
type OpenFunc func(ctx context.Context, id string) (Pool, error)

// Manager caches pools per connection id. One probe runs per id at a time;
// other ids are not blocked while a slow probe is in flight.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
	open    OpenFunc
	logger  zerolog.Logger
}

type entry struct {
	mu   sync.Mutex
	pool Pool
}

// NewManager creates a Manager that builds pools with open.
func NewManager(open OpenFunc, logger zerolog.Logger) *Manager {
	return &Manager{
		entries: make(map[string]*entry),
		open:    open,
		logger:  logger,
	}
}

// Get returns the cached ready pool for id, building and probing one if
// absent. A failed build leaves the id absent, so the next call retries.
func (m *Manager) Get(ctx context.Context, id string) (Pool, error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		e = &entry{}
		m.entries[id] = e
	}
	m.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool != nil {
		return e.pool, nil
	}
	p, err := m.open(ctx, id)
	if err != nil {
		return nil, err
	}
	e.pool = p
	m.logger.Info().Str("connection_id", id).Msg("connection pool ready")
	return p, nil
}

// Close releases the pool for id, if any.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	e, ok := m.entries[id]
	if ok {
		delete(m.entries, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	e.closePool()
	m.logger.Info().Str("connection_id", id).Msg("connection pool closed")
}

// Recreate drops the cached pool for id; the next Get rebuilds it lazily.
// Used after credential or parameter changes.
func (m *Manager) Recreate(id string) {
	m.Close(id)
}

// CloseAll releases every cached pool concurrently and waits for all
// releases to finish, or for ctx to expire.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	entries := m.entries
	m.entries = make(map[string]*entry)
	m.mu.Unlock()

	g := new(errgroup.Group)
	for _, e := range entries {
		g.Go(func() error {
			e.closePool()
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *entry) closePool() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool != nil {
		e.pool.Close()
		e.pool = nil
	}
}
