package querygate

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/querygate/querygate/internal/pool"
	"github.com/querygate/querygate/internal/qerr"
)

// ListDatabases returns the discoverable databases of a connection with
// per-database metadata. Databases configured as disabled are invisible;
// discovered but unconfigured databases appear with a default-deny grid.
// A metadata failure degrades that entry to basic info instead of failing
// the whole listing.
func (s *Service) ListDatabases(ctx context.Context, input ListDatabasesInput) ([]DatabaseInfo, error) {
	startTime := time.Now()

	conn, err := s.resolveConnection(ctx, input.ConnectionID)
	if err != nil {
		return nil, err
	}
	p, err := s.pools.Get(ctx, conn.ID)
	if err != nil {
		return nil, err
	}
	schemas, err := p.Schemas(ctx)
	if err != nil {
		return nil, qerr.Wrap(qerr.KindConnectivity, err, "schema discovery failed for connection %s", conn.ID)
	}

	infos := make([]DatabaseInfo, 0, len(schemas))
	for _, name := range schemas {
		cfg, configured := conn.Databases[name]
		if configured && !cfg.Enabled {
			continue
		}
		info := DatabaseInfo{Name: name, Alias: name}
		if configured {
			info.Enabled = true
			info.Permissions = cfg.Permissions
			if cfg.Alias != "" {
				info.Alias = cfg.Alias
			}
		}

		tableCount, sizeBytes, err := p.Stats(ctx, name)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("connection_id", conn.ID).
				Str("database", name).
				Msg("metadata lookup failed, degrading to basic info")
		} else {
			info.TableCount = &tableCount
			info.Size = formatBytes(sizeBytes)
		}
		infos = append(infos, info)
	}

	s.logger.Info().
		Str("connection_id", conn.ID).
		Dur("duration", time.Since(startTime)).
		Int("database_count", len(infos)).
		Msg("databases listed")

	return infos, nil
}

// ListTables lists the tables and views of one database. The database
// defaults to the connection's active database.
func (s *Service) ListTables(ctx context.Context, input ListTablesInput) (*ListTablesOutput, error) {
	conn, err := s.resolveConnection(ctx, input.ConnectionID)
	if err != nil {
		return nil, err
	}
	database := input.Database
	if database == "" {
		database = conn.ActiveDatabase
	}
	if database == "" {
		return nil, qerr.New(qerr.KindValidation, "database is required: connection %s has no active database", conn.ID)
	}
	if cfg, configured := conn.Databases[database]; configured && !cfg.Enabled {
		return nil, qerr.New(qerr.KindValidation, "database %q is not enabled on connection %s", database, conn.ID)
	}

	p, err := s.pools.Get(ctx, conn.ID)
	if err != nil {
		return nil, err
	}
	tables, err := p.Tables(ctx, database)
	if err != nil {
		return nil, qerr.Wrap(qerr.KindConnectivity, err, "table listing failed for database %q", database)
	}
	return &ListTablesOutput{Database: database, Tables: tables}, nil
}

// DatabaseExists reports whether a non-disabled database with the given name
// is discoverable on the connection.
func (s *Service) DatabaseExists(ctx context.Context, connectionID, name string) (bool, error) {
	conn, err := s.resolveConnection(ctx, connectionID)
	if err != nil {
		return false, err
	}
	if cfg, configured := conn.Databases[name]; configured && !cfg.Enabled {
		return false, nil
	}
	p, err := s.pools.Get(ctx, conn.ID)
	if err != nil {
		return false, err
	}
	schemas, err := p.Schemas(ctx)
	if err != nil {
		return false, qerr.Wrap(qerr.KindConnectivity, err, "schema discovery failed for connection %s", conn.ID)
	}
	for _, schema := range schemas {
		if schema == name {
			return true, nil
		}
	}
	return false, nil
}

// TestConnection runs a one-shot, uncached connectivity test with the given
// parameters. Used for pre-save validation; nothing is persisted or pooled.
func (s *Service) TestConnection(ctx context.Context, input TestConnectionInput) (*TestConnectionOutput, error) {
	if input.Host == "" {
		return nil, qerr.New(qerr.KindValidation, "host must not be empty")
	}
	if input.Port <= 0 {
		return nil, qerr.New(qerr.KindValidation, "port must be > 0")
	}

	result, err := pool.Test(ctx, pool.Config{
		Engine:   pool.Engine(input.Engine),
		Host:     input.Host,
		Port:     input.Port,
		User:     input.User,
		Password: input.Password,
		DBName:   input.DBName,
		MaxConns: 1,
	})
	if err != nil {
		return nil, err
	}
	return &TestConnectionOutput{
		LatencyMs: result.Latency.Milliseconds(),
		Schemas:   result.Schemas,
	}, nil
}

// formatBytes renders a byte count with binary (1024-based) units, one
// decimal place, and the unit chosen by logarithmic bucket.
func formatBytes(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}
	value := float64(bytes) / math.Pow(1024, float64(i))
	rounded := math.Round(value*10) / 10
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + units[i]
}
