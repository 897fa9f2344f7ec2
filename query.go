package querygate

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/querygate/querygate/internal/classify"
	"github.com/querygate/querygate/internal/qerr"
)

// Execute runs the full pipeline for one statement: classify, authorize
// against the active database's permission grid, acquire the pooled
// connection, execute, and normalize the result. Authorization happens
// strictly before any pool access; a denied statement causes no network I/O.
func (s *Service) Execute(ctx context.Context, input QueryInput) (*QueryOutput, error) {
	sqlText := strings.TrimSpace(input.SQL)
	if sqlText == "" {
		return nil, qerr.New(qerr.KindValidation, "sql must not be empty")
	}
	if len(sqlText) > s.config.Query.MaxSQLLength {
		return nil, qerr.New(qerr.KindValidation, "sql too long: %d bytes exceeds maximum of %d bytes", len(sqlText), s.config.Query.MaxSQLLength)
	}

	conn, err := s.resolveConnection(ctx, input.ConnectionID)
	if err != nil {
		return nil, err
	}
	if conn.ActiveDatabase == "" {
		return nil, qerr.New(qerr.KindValidation, "connection %s has no active database", conn.ID)
	}
	db, ok := conn.Databases[conn.ActiveDatabase]
	if !ok || !db.Enabled {
		return nil, qerr.New(qerr.KindValidation, "database %q is not enabled on connection %s", conn.ActiveDatabase, conn.ID)
	}

	kind := classify.Classify(sqlText)
	if !classify.Authorized(kind, db.Permissions) {
		if kind == classify.Unknown {
			return nil, qerr.New(qerr.KindAuthorization, "statement could not be classified and is denied by default")
		}
		return nil, qerr.New(qerr.KindAuthorization, "%s is not permitted on database %q: missing %s permission",
			kind, conn.ActiveDatabase, classify.Permission(kind))
	}

	p, err := s.pools.Get(ctx, conn.ID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	output := &QueryOutput{Columns: []string{}, Rows: []map[string]any{}}
	if kind.ReturnsRows() {
		result, err := p.Query(ctx, sqlText)
		if err != nil {
			return nil, s.queryError(sqlText, err)
		}
		output.Columns = result.Columns
		output.Rows = result.Rows
		output.RowCount = int64(len(result.Rows))
	} else {
		affected, err := p.Exec(ctx, sqlText)
		if err != nil {
			return nil, s.queryError(sqlText, err)
		}
		output.RowCount = affected
	}
	elapsed := time.Since(start)
	output.Duration = formatDuration(elapsed)

	s.logger.Info().
		Str("connection_id", conn.ID).
		Str("database", conn.ActiveDatabase).
		Str("kind", kind.String()).
		Str("sql", truncateForLog(sqlText, 200)).
		Dur("duration", elapsed).
		Int64("row_count", output.RowCount).
		Msg("query executed")

	return output, nil
}

// queryError logs and passes through a back-end fault with its underlying
// message. The raw SQL is truncated for the log, never for the caller.
func (s *Service) queryError(sqlText string, err error) error {
	s.logger.Error().
		Err(err).
		Str("sql", truncateForLog(sqlText, 200)).
		Msg("query error")
	return fmt.Errorf("query failed: %w", err)
}

// formatDuration renders a wall-clock duration the way results report it:
// millisecond precision below one second, two-decimal seconds above.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// truncateForLog truncates a string for log output to avoid oversized log entries.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
