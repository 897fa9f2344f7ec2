// Package classify derives a coarse statement kind from SQL text and decides
// whether that kind is permitted by a database's permission grid.
//
// Classification is a leading-keyword heuristic, not a parser. A statement
// that hides a privileged operation behind a permitted leading keyword (for
// example a CTE that deletes) is not detected here; that permissiveness is a
// documented property of the gate, not an oversight.
package classify

import "strings"

// Kind is the coarse category derived from a statement's leading keyword.
type Kind int

const (
	Unknown Kind = iota
	Select
	Insert
	Update
	Delete
	Create
	Alter
	Drop
	Truncate
	Show
	Describe
	Explain
	Use
	Set
)

var kindNames = map[Kind]string{
	Unknown:  "UNKNOWN",
	Select:   "SELECT",
	Insert:   "INSERT",
	Update:   "UPDATE",
	Delete:   "DELETE",
	Create:   "CREATE",
	Alter:    "ALTER",
	Drop:     "DROP",
	Truncate: "TRUNCATE",
	Show:     "SHOW",
	Describe: "DESCRIBE",
	Explain:  "EXPLAIN",
	Use:      "USE",
	Set:      "SET",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// ReturnsRows reports whether statements of this kind produce a result set,
// as opposed to an affected-row count.
func (k Kind) ReturnsRows() bool {
	switch k {
	case Select, Show, Describe, Explain:
		return true
	}
	return false
}

// Grid is the 8-flag boolean policy gating statement kinds per database.
// All flags are always defined; the zero value denies everything.
type Grid struct {
	Select   bool `json:"select"`
	Insert   bool `json:"insert"`
	Update   bool `json:"update"`
	Delete   bool `json:"delete"`
	Create   bool `json:"create"`
	Alter    bool `json:"alter"`
	Drop     bool `json:"drop"`
	Truncate bool `json:"truncate"`
}

// Classify derives a Kind from the case-insensitive leading keyword of the
// trimmed SQL text. Any unrecognized leading token classifies as Unknown.
func Classify(sql string) Kind {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return Unknown
	}
	end := len(trimmed)
	for i, r := range trimmed {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '(' || r == ';' {
			end = i
			break
		}
	}
	switch strings.ToUpper(trimmed[:end]) {
	case "SELECT":
		return Select
	case "INSERT":
		return Insert
	case "UPDATE":
		return Update
	case "DELETE":
		return Delete
	case "CREATE":
		return Create
	case "ALTER":
		return Alter
	case "DROP":
		return Drop
	case "TRUNCATE":
		return Truncate
	case "SHOW":
		return Show
	case "DESCRIBE", "DESC":
		return Describe
	case "EXPLAIN":
		return Explain
	case "USE":
		return Use
	case "SET":
		return Set
	default:
		return Unknown
	}
}

// Permission returns the grid flag name the kind maps to, or "" for Unknown.
// Read-flavored kinds (SELECT, SHOW, DESCRIBE, EXPLAIN, USE, SET) all map to
// the select flag; each mutating kind maps to its identically named flag.
func Permission(k Kind) string {
	switch k {
	case Select, Show, Describe, Explain, Use, Set:
		return "select"
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	case Create:
		return "create"
	case Alter:
		return "alter"
	case Drop:
		return "drop"
	case Truncate:
		return "truncate"
	default:
		return ""
	}
}

// Authorized reports whether the kind's mapped flag is set in the grid.
// Unknown kinds map to no flag and are always denied.
func Authorized(k Kind, g Grid) bool {
	switch Permission(k) {
	case "select":
		return g.Select
	case "insert":
		return g.Insert
	case "update":
		return g.Update
	case "delete":
		return g.Delete
	case "create":
		return g.Create
	case "alter":
		return g.Alter
	case "drop":
		return g.Drop
	case "truncate":
		return g.Truncate
	default:
		return false
	}
}
