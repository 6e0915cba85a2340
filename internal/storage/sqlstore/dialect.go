package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect is the SQL backend variant a Store talks to.
type Dialect string

const (
	// DialectSQLite uses unnamed positional ? parameters.
	DialectSQLite Dialect = "sqlite"
	// DialectPostgres uses numbered $n parameters.
	DialectPostgres Dialect = "postgres"
)

// ParseDialect maps a DB_TYPE setting onto a dialect: "pg", "postgres" and
// "postgresql" select PostgreSQL, anything else selects SQLite.
func ParseDialect(value string) Dialect {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "pg", "postgres", "postgresql":
		return DialectPostgres
	default:
		return DialectSQLite
	}
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case DialectPostgres:
		return "pgx"
	default:
		return "sqlite"
	}
}

func (d Dialect) String() string {
	return string(d)
}

// Rebind rewrites ? placeholders into the dialect's form. Question marks
// inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 8)
	argIndex := 1
	inLiteral := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			inLiteral = !inLiteral
			sb.WriteByte(ch)
		case ch == '?' && !inLiteral:
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(argIndex))
			argIndex++
		default:
			sb.WriteByte(ch)
		}
	}
	return sb.String()
}

// StringAgg renders an ordered string aggregate of expr joined by sep.
// sep is written into the query text and must be a constant.
func (d Dialect) StringAgg(expr, sep string) string {
	fn := "group_concat"
	if d == DialectPostgres {
		fn = "string_agg"
	}
	return fmt.Sprintf("%s(%s, '%s' ORDER BY %s)", fn, expr, strings.ReplaceAll(sep, "'", "''"), expr)
}
