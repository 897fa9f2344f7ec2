// Package render produces the compact tabular text notation used by the
// streaming channel: a header line `[rowCount]{field1,field2,...}:` followed
// by one indented, comma-joined line per row. Values that would be ambiguous
// as bare text (empty, delimiter-bearing, literal-looking, numeric-looking,
// whitespace-sensitive) are double-quoted with escaping.
package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const delimiter = ","

var numericPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// Table renders columns and rows as compact tabular text.
func Table(columns []string, rows []map[string]any) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%d]{%s}:", len(rows), strings.Join(columns, delimiter)))
	for _, row := range rows {
		fields := make([]string, len(columns))
		for i, col := range columns {
			fields[i] = Value(row[col])
		}
		b.WriteString("\n " + strings.Join(fields, delimiter))
	}
	return b.String()
}

// Value renders a single cell. Strings are quoted when required; numbers
// render without exponent notation, without superfluous zeros, and with -0
// normalized to 0; nil and booleans render as their bare literals.
func Value(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(val)
	case float32:
		return Number(float64(val))
	case float64:
		return Number(val)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case string:
		return maybeQuote(val)
	default:
		return maybeQuote(fmt.Sprintf("%v", val))
	}
}

// Number formats a float without exponent notation and with -0 normalized.
func Number(f float64) string {
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func maybeQuote(s string) string {
	if needsQuote(s) {
		return quote(s)
	}
	return s
}

func needsQuote(s string) bool {
	if s == "" {
		return true
	}
	if strings.Contains(s, delimiter) {
		return true
	}
	switch strings.ToLower(s) {
	case "true", "false", "null":
		return true
	}
	if numericPattern.MatchString(s) {
		return true
	}
	if strings.ContainsAny(s, "\n\r\t") {
		return true
	}
	if strings.TrimSpace(s) != s {
		return true
	}
	if strings.ContainsAny(s, `"\`) {
		return true
	}
	return false
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
