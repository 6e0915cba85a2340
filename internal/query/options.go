// Package query builds parameterized SELECT statements for collection reads.
//
// Identifiers placed into query text come either from constants in the calling
// repository or from a Columns allow-list; every caller supplied value is bound
// as a parameter.
package query

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Direction is the sort direction of a collection query.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 20
	DefaultSort    = "id"
)

// ErrInvalidOptions wraps every collection option validation failure.
var ErrInvalidOptions = errors.New("invalid collection options")

// Options customizes a collection read. Zero values mean "not supplied".
type Options struct {
	Page    int       `json:"page,omitempty"`
	PerPage int       `json:"perPage,omitempty"`
	Sort    string    `json:"sort,omitempty"`
	Order   Direction `json:"order,omitempty"`
	Filter  string    `json:"filter,omitempty"`
}

// Defaults returns the options applied when a caller supplies nothing.
func Defaults() Options {
	return Options{
		Page:    DefaultPage,
		PerPage: DefaultPerPage,
		Sort:    DefaultSort,
		Order:   Asc,
	}
}

// Offset is (page − 1) × perPage.
func (o Options) Offset() int {
	return (o.Page - 1) * o.PerPage
}

// Normalize fills unset fields from defaults and validates the result:
// page and perPage must be positive with an offset that fits in an int,
// order must be asc or desc and sort must name a column in cols.
func (o Options) Normalize(defaults Options, cols Columns) (Options, error) {
	out := o
	if out.Page == 0 {
		out.Page = defaults.Page
	}
	if out.PerPage == 0 {
		out.PerPage = defaults.PerPage
	}
	out.Sort = strings.ToLower(strings.TrimSpace(out.Sort))
	if out.Sort == "" {
		out.Sort = defaults.Sort
	}
	out.Order = Direction(strings.ToLower(strings.TrimSpace(string(out.Order))))
	if out.Order == "" {
		out.Order = defaults.Order
	}
	out.Filter = strings.TrimSpace(out.Filter)

	if out.Page < 1 {
		return Options{}, fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalidOptions, out.Page)
	}
	if out.PerPage < 1 {
		return Options{}, fmt.Errorf("%w: perPage must be >= 1, got %d", ErrInvalidOptions, out.PerPage)
	}
	if out.Page-1 > math.MaxInt/out.PerPage {
		return Options{}, fmt.Errorf("%w: page %d is out of range for perPage %d", ErrInvalidOptions, out.Page, out.PerPage)
	}
	if out.Order != Asc && out.Order != Desc {
		return Options{}, fmt.Errorf("%w: order must be asc or desc, got %q", ErrInvalidOptions, out.Order)
	}
	if _, ok := cols[out.Sort]; !ok {
		return Options{}, fmt.Errorf("%w: unknown sort field %q", ErrInvalidOptions, out.Sort)
	}
	return out, nil
}

// Columns maps the public field names a caller may sort by to the SQL
// expressions they stand for.
type Columns map[string]string

// Expr returns the SQL expression for a public field name.
func (c Columns) Expr(name string) (string, bool) {
	expr, ok := c[strings.ToLower(strings.TrimSpace(name))]
	return expr, ok
}
