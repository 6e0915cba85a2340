package query

import (
	"strings"
)

// Condition is a pre-built WHERE fragment with its bound arguments. The SQL
// must come from code, never from caller input.
type Condition struct {
	SQL  string
	Args []any
}

// Eq matches column = value.
func Eq(column string, value any) Condition {
	return Condition{SQL: column + " = ?", Args: []any{value}}
}

// Contains matches text case-insensitively as a substring of any of columns.
// Empty text yields an empty condition.
func Contains(text string, columns ...string) Condition {
	if text == "" || len(columns) == 0 {
		return Condition{}
	}
	pattern := "%" + escapeLike(strings.ToLower(text)) + "%"
	parts := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, "LOWER("+col+`) LIKE ? ESCAPE '\'`)
		args = append(args, pattern)
	}
	return Condition{SQL: "(" + strings.Join(parts, " OR ") + ")", Args: args}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Select assembles a SELECT statement with ? placeholders.
type Select struct {
	columns []string
	from    string
	joins   []string
	where   []string
	args    []any
	groupBy []string
	orderBy []string
	limit   int
	offset  int
}

// NewSelect starts a statement projecting columns.
func NewSelect(columns ...string) *Select {
	return &Select{columns: columns}
}

func (s *Select) From(table string) *Select {
	s.from = table
	return s
}

// LeftJoin adds "LEFT JOIN table ON on".
func (s *Select) LeftJoin(table, on string) *Select {
	s.joins = append(s.joins, "LEFT JOIN "+table+" ON "+on)
	return s
}

// Where adds a condition; conditions are combined with AND.
func (s *Select) Where(cond Condition) *Select {
	if cond.SQL == "" {
		return s
	}
	s.where = append(s.where, cond.SQL)
	s.args = append(s.args, cond.Args...)
	return s
}

func (s *Select) GroupBy(cols ...string) *Select {
	s.groupBy = append(s.groupBy, cols...)
	return s
}

// OrderBy appends an ORDER BY term. expr must be a trusted expression.
func (s *Select) OrderBy(expr string, dir Direction) *Select {
	if dir == Desc {
		s.orderBy = append(s.orderBy, expr+" DESC")
	} else {
		s.orderBy = append(s.orderBy, expr+" ASC")
	}
	return s
}

// Page limits the result to one page; page is 1-based.
func (s *Select) Page(page, perPage int) *Select {
	s.limit = perPage
	s.offset = (page - 1) * perPage
	return s
}

// Sorted applies normalized options: the resolved sort column, then tie as a
// tie-breaker so pages never overlap, then the page window.
func (s *Select) Sorted(opts Options, cols Columns, tie string) *Select {
	if expr, ok := cols.Expr(opts.Sort); ok {
		s.OrderBy(expr, opts.Order)
		if expr != tie {
			s.OrderBy(tie, Asc)
		}
	} else {
		s.OrderBy(tie, Asc)
	}
	return s.Page(opts.Page, opts.PerPage)
}

// Build renders the statement and its arguments in placeholder order.
func (s *Select) Build() (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(s.columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(s.from)
	for _, j := range s.joins {
		sb.WriteString(" ")
		sb.WriteString(j)
	}

	args := make([]any, 0, len(s.args)+2)
	args = append(args, s.args...)

	if len(s.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(s.where, " AND "))
	}
	if len(s.groupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(s.groupBy, ", "))
	}
	if len(s.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(s.orderBy, ", "))
	}
	if s.limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, s.limit)
		if s.offset > 0 {
			sb.WriteString(" OFFSET ?")
			args = append(args, s.offset)
		}
	}
	return sb.String(), args
}
