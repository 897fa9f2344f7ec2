package render

import "testing"

func TestTableSpecExample(t *testing.T) {
	t.Parallel()
	got := Table([]string{"a", "b"}, []map[string]any{{"a": 1, "b": "x,y"}})
	want := "[1]{a,b}:\n 1,\"x,y\""
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTableEmptyResult(t *testing.T) {
	t.Parallel()
	got := Table([]string{"id", "name"}, nil)
	if got != "[0]{id,name}:" {
		t.Fatalf("got %q", got)
	}
}

func TestQuotingRules(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   any
		want string
	}{
		{"plain", "plain"},
		{"", `""`},
		{"a,b", `"a,b"`},
		{"true", `"true"`},
		{"FALSE", `"FALSE"`},
		{"Null", `"Null"`},
		{"42", `"42"`},
		{"-3.5", `"-3.5"`},
		{"4.2.1", "4.2.1"},
		{"line\nbreak", `"line\nbreak"`},
		{"tab\there", `"tab\there"`},
		{" padded", `" padded"`},
		{"trailing ", `"trailing "`},
		{`has"quote`, `"has\"quote"`},
		{`back\slash`, `"back\\slash"`},
		{"cr\rhere", `"cr\rhere"`},
	}
	for _, tc := range cases {
		if got := Value(tc.in); got != tc.want {
			t.Fatalf("Value(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBareLiterals(t *testing.T) {
	t.Parallel()
	if got := Value(nil); got != "null" {
		t.Fatalf("nil rendered %q", got)
	}
	if got := Value(true); got != "true" {
		t.Fatalf("true rendered %q", got)
	}
	if got := Value(false); got != "false" {
		t.Fatalf("false rendered %q", got)
	}
}

func TestNumberFormatting(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   float64
		want string
	}{
		{1, "1"},
		{1.5, "1.5"},
		{0, "0"},
		{negZero(), "0"},
		{1000000, "1000000"},
		{0.0001, "0.0001"},
		{-2.25, "-2.25"},
	}
	for _, tc := range cases {
		if got := Number(tc.in); got != tc.want {
			t.Fatalf("Number(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func negZero() float64 {
	z := 0.0
	return -z
}

func TestIntegerValues(t *testing.T) {
	t.Parallel()
	if got := Value(int64(9007199254740993)); got != "9007199254740993" {
		t.Fatalf("int64 rendered %q", got)
	}
	if got := Value(7); got != "7" {
		t.Fatalf("int rendered %q", got)
	}
}
