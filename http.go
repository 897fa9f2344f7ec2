package querygate

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/querygate/querygate/internal/qerr"
)

const maxRequestBody = 1 << 20 // 1 MiB

type errorEnvelope struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// HTTPHandler returns the single-shot channel: discrete, sessionless
// request/response calls sharing the authentication, authorization, and
// execution core with the streaming channel.
func (s *Service) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/query", s.handle("query", s.handleQuery))
	mux.HandleFunc("GET /api/databases", s.handle("list_databases", s.handleListDatabases))
	mux.HandleFunc("GET /api/databases/{database}/tables", s.handle("list_tables", s.handleListTables))
	mux.HandleFunc("POST /api/connections/test", s.handle("test_connection", s.handleTestConnection))
	return mux
}

type httpHandlerFunc func(ctx context.Context, body []byte, r *http.Request) (any, error)

// handle wraps an operation with the shared per-call discipline: authenticate
// before anything else, short-circuit when the feature switch is off, run the
// pipeline, respond, and write exactly one audit record. Requests rejected
// before identity is established are never audited.
func (s *Service) handle(method string, fn httpHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		identity, ok := s.auth.Verify(bearerToken(r))
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorEnvelope{
				Error: "missing or invalid bearer token",
				Kind:  string(qerr.KindAuthentication),
			})
			return
		}

		body, readErr := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))

		var result any
		var err error
		switch {
		case readErr != nil:
			err = qerr.Wrap(qerr.KindValidation, readErr, "failed to read request body")
		case !s.Enabled():
			err = qerr.New(qerr.KindUnavailable, "sql execution is disabled")
		default:
			result, err = fn(r.Context(), body, r)
		}

		status := statusForError(err)
		var response any
		if err != nil {
			response = errorEnvelope{Error: err.Error(), Kind: string(qerr.KindOf(err))}
		} else {
			response = result
		}
		writeJSON(w, status, response)

		// The audit record must outlive a client disconnect.
		s.audit(context.WithoutCancel(r.Context()), identity, endpointHTTP, method,
			auditRequest(body, r), response, status, time.Since(start))
	}
}

func (s *Service) handleQuery(ctx context.Context, body []byte, _ *http.Request) (any, error) {
	var input QueryInput
	if err := json.Unmarshal(body, &input); err != nil {
		return nil, qerr.Wrap(qerr.KindValidation, err, "malformed request body")
	}
	return s.Execute(ctx, input)
}

func (s *Service) handleListDatabases(ctx context.Context, _ []byte, r *http.Request) (any, error) {
	return s.ListDatabases(ctx, ListDatabasesInput{
		ConnectionID: r.URL.Query().Get("connection"),
	})
}

func (s *Service) handleListTables(ctx context.Context, _ []byte, r *http.Request) (any, error) {
	return s.ListTables(ctx, ListTablesInput{
		ConnectionID: r.URL.Query().Get("connection"),
		Database:     r.PathValue("database"),
	})
}

func (s *Service) handleTestConnection(ctx context.Context, body []byte, _ *http.Request) (any, error) {
	var input TestConnectionInput
	if err := json.Unmarshal(body, &input); err != nil {
		return nil, qerr.Wrap(qerr.KindValidation, err, "malformed request body")
	}
	return s.TestConnection(ctx, input)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

// auditRequest builds the auditable request payload: the decoded JSON body
// when present, otherwise the query parameters.
func auditRequest(body []byte, r *http.Request) any {
	if len(body) > 0 {
		var decoded map[string]any
		if err := json.Unmarshal(body, &decoded); err == nil {
			return decoded
		}
		return map[string]any{"raw_length": len(body)}
	}
	params := map[string]any{}
	for key, values := range r.URL.Query() {
		if len(values) == 1 {
			params[key] = values[0]
		} else {
			params[key] = values
		}
	}
	return params
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
