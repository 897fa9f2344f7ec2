package querygate

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/querygate/querygate/internal/qerr"
	"github.com/querygate/querygate/internal/store"
)

// Channel labels recorded in the audit log.
const (
	endpointHTTP = "http"
	endpointMCP  = "mcp"
)

// audit writes exactly one record for a completed attempt. Request and
// response are sanitized before they reach the store; sink failures are
// logged and swallowed, never propagated to the caller.
func (s *Service) audit(ctx context.Context, identity, endpoint, method string, request, response any, status int, duration time.Duration) {
	entry := store.LogEntry{
		Time:       time.Now().UTC(),
		Identity:   identity,
		Endpoint:   endpoint,
		Method:     method,
		Request:    s.sanitizer.Sanitize(jsonValue(request)),
		Response:   s.sanitizer.Sanitize(jsonValue(response)),
		Status:     status,
		DurationMs: duration.Milliseconds(),
	}
	if err := s.store.AppendLogEntry(ctx, entry); err != nil {
		s.logger.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Str("method", method).
			Msg("failed to append audit entry")
	}
}

// jsonValue normalizes a payload to decoded-JSON form so the sanitizer walks
// every nested field, including ones inside typed response structs.
func jsonValue(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(b, &decoded); err != nil {
		return nil
	}
	return decoded
}

// statusForError maps an error kind to the status code used in responses and
// audit records. nil maps to 200.
func statusForError(err error) int {
	switch qerr.KindOf(err) {
	case "":
		return http.StatusOK
	case qerr.KindValidation, qerr.KindProtocol:
		return http.StatusBadRequest
	case qerr.KindAuthentication:
		return http.StatusUnauthorized
	case qerr.KindAuthorization:
		return http.StatusForbidden
	case qerr.KindUnavailable:
		return http.StatusServiceUnavailable
	case qerr.KindConnectivity:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
