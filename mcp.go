package querygate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/querygate/querygate/internal/classify"
	"github.com/querygate/querygate/internal/qerr"
	"github.com/querygate/querygate/internal/render"
	"github.com/querygate/querygate/internal/session"
)

type authTokenKey struct{}

// AuthFromRequest copies the request's bearer token into the context so tool
// handlers can authenticate each call. Wire it with server.WithHTTPContextFunc.
func AuthFromRequest(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, authTokenKey{}, bearerToken(r))
}

func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(authTokenKey{}).(string)
	return token
}

// RegisterSessionHooks mirrors the MCP session lifecycle into the service's
// session registry. Closed session ids are retired and never accepted again.
func (s *Service) RegisterSessionHooks(hooks *server.Hooks) {
	hooks.AddOnRegisterSession(func(ctx context.Context, cs server.ClientSession) {
		id := cs.SessionID()
		if id == "" {
			return
		}
		now := time.Now()
		if err := s.sessions.Register(&session.Session{ID: id, CreatedAt: now, LastSeen: now}); err != nil {
			s.logger.Error().Err(err).Str("session_id", id).Msg("session registration rejected")
			return
		}
		s.logger.Info().Str("session_id", id).Msg("session opened")
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, cs server.ClientSession) {
		s.sessions.Remove(cs.SessionID())
		s.logger.Info().Str("session_id", cs.SessionID()).Msg("session closed")
	})
	hooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
		clientName := req.Params.ClientInfo.Name
		clientVersion := req.Params.ClientInfo.Version
		if cs := server.ClientSessionFromContext(ctx); cs != nil {
			s.sessions.SetClientInfo(cs.SessionID(), clientName, clientVersion)
		}
		s.logger.Info().
			Str("client_name", clientName).
			Str("client_version", clientVersion).
			Msg("client connected (MCP initialize)")
	})
}

// RegisterMCPTools registers the query, list_databases, and list_tables tools
// on the given MCP server.
func RegisterMCPTools(mcpServer *server.MCPServer, s *Service) {
	queryTool := mcp.NewTool("query",
		mcp.WithDescription("Execute a SQL statement against the active database of a managed connection. Reads return a compact table; writes return the affected row count."),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The SQL statement to execute"),
		),
		mcp.WithString("connection",
			mcp.Description("Connection id (optional when exactly one connection is configured)"),
		),
	)

	mcpServer.AddTool(queryTool, s.mcpToolHandler("query", func(ctx context.Context, req mcp.CallToolRequest) (string, error) {
		sql, err := req.RequireString("sql")
		if err != nil {
			return "", qerr.New(qerr.KindValidation, "sql parameter is required")
		}
		output, err := s.Execute(ctx, QueryInput{
			ConnectionID: req.GetString("connection", ""),
			SQL:          sql,
		})
		if err != nil {
			return "", err
		}
		return renderQueryOutput(output), nil
	}))

	listDatabasesTool := mcp.NewTool("list_databases",
		mcp.WithDescription("List the databases discoverable on a managed connection, with the permission grid and metadata for each."),
		mcp.WithString("connection",
			mcp.Description("Connection id (optional when exactly one connection is configured)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(listDatabasesTool, s.mcpToolHandler("list_databases", func(ctx context.Context, req mcp.CallToolRequest) (string, error) {
		databases, err := s.ListDatabases(ctx, ListDatabasesInput{
			ConnectionID: req.GetString("connection", ""),
		})
		if err != nil {
			return "", err
		}
		return renderDatabases(databases), nil
	}))

	listTablesTool := mcp.NewTool("list_tables",
		mcp.WithDescription("List the tables in a database on a managed connection. Defaults to the connection's active database."),
		mcp.WithString("connection",
			mcp.Description("Connection id (optional when exactly one connection is configured)"),
		),
		mcp.WithString("database",
			mcp.Description("Database name (defaults to the connection's active database)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(listTablesTool, s.mcpToolHandler("list_tables", func(ctx context.Context, req mcp.CallToolRequest) (string, error) {
		output, err := s.ListTables(ctx, ListTablesInput{
			ConnectionID: req.GetString("connection", ""),
			Database:     req.GetString("database", ""),
		})
		if err != nil {
			return "", err
		}
		rows := make([]map[string]any, len(output.Tables))
		for i, table := range output.Tables {
			rows[i] = map[string]any{"table": table}
		}
		return render.Table([]string{"table"}, rows), nil
	}))
}

// renderQueryOutput renders a read as a compact table and a write as an
// affected-rows summary.
func renderQueryOutput(output *QueryOutput) string {
	if len(output.Columns) > 0 {
		return render.Table(output.Columns, output.Rows)
	}
	return fmt.Sprintf("OK: %d row(s) affected (%s)", output.RowCount, output.Duration)
}

func renderDatabases(databases []DatabaseInfo) string {
	columns := []string{"name", "alias", "enabled", "permissions", "tables", "size"}
	rows := make([]map[string]any, len(databases))
	for i, db := range databases {
		var tables any
		if db.TableCount != nil {
			tables = *db.TableCount
		}
		rows[i] = map[string]any{
			"name":        db.Name,
			"alias":       db.Alias,
			"enabled":     db.Enabled,
			"permissions": grantedPermissions(db.Permissions),
			"tables":      tables,
			"size":        db.Size,
		}
	}
	return render.Table(columns, rows)
}

// grantedPermissions flattens a permission grid into a space-separated list
// of granted statement kinds, or "none" when nothing is granted.
func grantedPermissions(g classify.Grid) string {
	granted := make([]string, 0, 8)
	pairs := []struct {
		name string
		on   bool
	}{
		{"select", g.Select},
		{"insert", g.Insert},
		{"update", g.Update},
		{"delete", g.Delete},
		{"create", g.Create},
		{"alter", g.Alter},
		{"drop", g.Drop},
		{"truncate", g.Truncate},
	}
	for _, p := range pairs {
		if p.on {
			granted = append(granted, p.name)
		}
	}
	if len(granted) == 0 {
		return "none"
	}
	return strings.Join(granted, " ")
}

type mcpToolFunc func(ctx context.Context, req mcp.CallToolRequest) (string, error)

// mcpToolHandler wraps a tool function with per-call authentication, the
// feature switch, session validation, and audit logging. Unauthenticated
// calls are rejected without an audit entry.
func (s *Service) mcpToolHandler(tool string, fn mcpToolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		identity, ok := s.auth.Verify(tokenFromContext(ctx))
		if !ok {
			return mcp.NewToolResultError("missing or invalid bearer token"), nil
		}

		start := time.Now()
		var text string
		var err error
		if !s.Enabled() {
			err = qerr.New(qerr.KindUnavailable, "sql execution is disabled")
		} else if err = s.checkSession(ctx); err == nil {
			text, err = fn(ctx, req)
		}

		var result *mcp.CallToolResult
		var response any
		if err != nil {
			result = mcp.NewToolResultError(err.Error())
			response = map[string]any{"error": err.Error()}
		} else {
			result = mcp.NewToolResultText(text)
			response = map[string]any{"result": text}
		}
		s.audit(context.WithoutCancel(ctx), identity, endpointMCP, tool,
			req.GetArguments(), response, statusForError(err), time.Since(start))
		return result, nil
	}
}

// checkSession validates the caller's session id against the registry. A
// retired id is a protocol violation: ids are single-use and never recycled.
func (s *Service) checkSession(ctx context.Context) error {
	cs := server.ClientSessionFromContext(ctx)
	if cs == nil || cs.SessionID() == "" {
		return nil
	}
	id := cs.SessionID()
	if _, ok := s.sessions.Get(id); ok {
		return nil
	}
	if s.sessions.Retired(id) {
		return qerr.New(qerr.KindProtocol, "session %s is closed and its id cannot be reused", id)
	}
	return qerr.New(qerr.KindProtocol, "unknown session %s: initialize a session before calling tools", id)
}
