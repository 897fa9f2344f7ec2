package sanitize

import (
	"fmt"
	"strings"
	"testing"
)

func TestRedactsPasswordKey(t *testing.T) {
	t.Parallel()
	s := New(0)
	out := s.Sanitize(map[string]any{"password": "hunter2", "name": "bob"})
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", out)
	}
	if m["password"] != Redacted {
		t.Fatalf("expected %s, got %v", Redacted, m["password"])
	}
	if m["name"] != "bob" {
		t.Fatalf("non-sensitive value changed: %v", m["name"])
	}
}

func TestRedactsNestedSensitiveKeys(t *testing.T) {
	t.Parallel()
	s := New(0)
	input := map[string]any{
		"config": map[string]any{
			"connection": map[string]any{
				"password": "x",
				"apiToken": "y",
				"host":     "db.local",
			},
		},
		"items": []any{
			map[string]any{"secret_value": 42},
		},
	}
	out := s.Sanitize(input).(map[string]any)
	conn := out["config"].(map[string]any)["connection"].(map[string]any)
	if conn["password"] != Redacted || conn["apiToken"] != Redacted {
		t.Fatalf("nested sensitive keys not redacted: %v", conn)
	}
	if conn["host"] != "db.local" {
		t.Fatalf("host changed: %v", conn["host"])
	}
	item := out["items"].([]any)[0].(map[string]any)
	if item["secret_value"] != Redacted {
		t.Fatalf("array-nested sensitive key not redacted: %v", item)
	}
}

func TestCaseInsensitiveKeyMatch(t *testing.T) {
	t.Parallel()
	s := New(0)
	out := s.Sanitize(map[string]any{"PassWord": "x", "AUTH_HEADER": "y"}).(map[string]any)
	if out["PassWord"] != Redacted || out["AUTH_HEADER"] != Redacted {
		t.Fatalf("key matching must be case-insensitive: %v", out)
	}
}

func TestDepthBound(t *testing.T) {
	t.Parallel()
	s := New(0)
	// Build a value nested beyond MaxDepth.
	var v any = "leaf"
	for i := 0; i < MaxDepth+3; i++ {
		v = map[string]any{"child": v}
	}
	out := s.Sanitize(v)
	cur := out
	depth := 0
	for {
		m, ok := cur.(map[string]any)
		if !ok {
			break
		}
		cur = m["child"]
		depth++
	}
	if cur != DepthExceeded {
		t.Fatalf("expected %s at the bound, got %v (depth %d)", DepthExceeded, cur, depth)
	}
}

func TestLongStringTruncated(t *testing.T) {
	t.Parallel()
	s := New(0)
	long := strings.Repeat("a", MaxStringLen+50)
	out := s.Sanitize(long).(string)
	if !strings.HasSuffix(out, "... [TRUNCATED]") {
		t.Fatalf("expected truncation suffix, got %q", out[len(out)-30:])
	}
	if len(out) != MaxStringLen+len("... [TRUNCATED]") {
		t.Fatalf("unexpected truncated length %d", len(out))
	}
}

func TestLargeArrayTruncated(t *testing.T) {
	t.Parallel()
	s := New(0)
	arr := make([]any, MaxArrayLen+25)
	for i := range arr {
		arr[i] = i
	}
	out := s.Sanitize(arr).([]any)
	if len(out) != MaxArrayLen+1 {
		t.Fatalf("expected %d elements, got %d", MaxArrayLen+1, len(out))
	}
	marker, ok := out[MaxArrayLen].(string)
	if !ok || marker != fmt.Sprintf("... (%d more items)", 25) {
		t.Fatalf("unexpected trailing marker: %v", out[MaxArrayLen])
	}
}

func TestSerializedSizeCap(t *testing.T) {
	t.Parallel()
	s := New(200)
	rows := make([]any, 50)
	for i := range rows {
		rows[i] = map[string]any{"value": strings.Repeat("x", 20)}
	}
	out := s.Sanitize(rows)
	str, ok := out.(string)
	if !ok {
		t.Fatalf("expected capped output to be a string, got %T", out)
	}
	if !strings.HasSuffix(str, "... [TRUNCATED]") {
		t.Fatalf("expected truncation suffix on capped output")
	}
}

func TestScalarsPassThrough(t *testing.T) {
	t.Parallel()
	s := New(0)
	for _, v := range []any{nil, true, 42, 3.14, "plain"} {
		if out := s.Sanitize(v); out != v {
			t.Fatalf("scalar %v changed to %v", v, out)
		}
	}
}

func TestFailureYieldsPlaceholder(t *testing.T) {
	t.Parallel()
	s := New(0)
	// Channels cannot be marshaled; the size-cap step must not error out.
	out := s.Sanitize(map[string]any{"ch": make(chan int)})
	if out != Failed {
		t.Fatalf("expected %s for unmarshalable input, got %v", Failed, out)
	}
}
