// Package sanitize produces redacted copies of request and response payloads
// before they reach the audit log. Input is modeled as decoded-JSON value
// variants (nil, bool, number, string, []any, map[string]any) and walked
// structurally; the walk is bounded in depth, element count, string length,
// and total serialized size so a hostile payload cannot blow up the log.
package sanitize

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// Redacted replaces any value whose key names a sensitive term.
	Redacted = "[REDACTED]"
	// DepthExceeded replaces values nested beyond MaxDepth.
	DepthExceeded = "[MAX_DEPTH_EXCEEDED]"
	// Failed is returned whole when sanitization itself panics.
	Failed = "[SANITIZATION_FAILED]"

	// MaxDepth is the deepest nesting level that is still walked.
	MaxDepth = 10
	// MaxStringLen is the longest string kept verbatim.
	MaxStringLen = 1000
	// MaxArrayLen is the most array elements kept.
	MaxArrayLen = 100
	// DefaultMaxSerialized caps the serialized size of the sanitized value.
	DefaultMaxSerialized = 10000
)

// sensitiveTerms are matched case-insensitively as substrings of map keys.
var sensitiveTerms = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"key",
	"auth",
	"credential",
	"iv",
	"tag",
	"salt",
	"cipher",
}

// Sanitizer redacts sensitive fields from nested values.
// The zero value is not usable; call New.
type Sanitizer struct {
	maxSerialized int
}

// New creates a Sanitizer. maxSerialized <= 0 selects DefaultMaxSerialized.
func New(maxSerialized int) *Sanitizer {
	if maxSerialized <= 0 {
		maxSerialized = DefaultMaxSerialized
	}
	return &Sanitizer{maxSerialized: maxSerialized}
}

// Sanitize returns a redacted copy of v. It never panics and never fails:
// any internal fault yields the Failed placeholder instead.
func (s *Sanitizer) Sanitize(v any) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = Failed
		}
	}()

	out = sanitizeValue(v, 0)

	// Cap the final serialized size. If the sanitized value still serializes
	// over the limit, the serialized form itself becomes the value.
	b, err := json.Marshal(out)
	if err != nil {
		return Failed
	}
	if len(b) > s.maxSerialized {
		return string(b[:s.maxSerialized]) + "... [TRUNCATED]"
	}
	return out
}

func sanitizeValue(v any, depth int) any {
	if depth > MaxDepth {
		return DepthExceeded
	}
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, item := range val {
			if isSensitiveKey(k) {
				result[k] = Redacted
				continue
			}
			result[k] = sanitizeValue(item, depth+1)
		}
		return result
	case []any:
		n := len(val)
		if n > MaxArrayLen {
			result := make([]any, 0, MaxArrayLen+1)
			for _, item := range val[:MaxArrayLen] {
				result = append(result, sanitizeValue(item, depth+1))
			}
			result = append(result, fmt.Sprintf("... (%d more items)", n-MaxArrayLen))
			return result
		}
		result := make([]any, n)
		for i, item := range val {
			result[i] = sanitizeValue(item, depth+1)
		}
		return result
	case string:
		if len(val) > MaxStringLen {
			return val[:MaxStringLen] + "... [TRUNCATED]"
		}
		return val
	default:
		// nil, bool, numbers, json.Number — pass through as-is.
		return v
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, term := range sensitiveTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
