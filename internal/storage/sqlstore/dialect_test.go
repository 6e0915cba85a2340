package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDialect(t *testing.T) {
	t.Parallel()

	require.Equal(t, DialectPostgres, ParseDialect(" PG "))
	require.Equal(t, DialectPostgres, ParseDialect("postgresql"))
	require.Equal(t, DialectSQLite, ParseDialect(""))
	require.Equal(t, DialectSQLite, ParseDialect("sqlite"))
	require.Equal(t, DialectSQLite, ParseDialect("mysql"))
}

func TestDialectDriverName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "pgx", DialectPostgres.DriverName())
	require.Equal(t, "sqlite", DialectSQLite.DriverName())
}

func TestDialectRebind(t *testing.T) {
	t.Parallel()

	q := `SELECT id FROM Customer WHERE LOWER(contactname) LIKE ? ESCAPE '\' AND note <> 'why?' AND id = ? LIMIT ?`
	require.Equal(t,
		`SELECT id FROM Customer WHERE LOWER(contactname) LIKE $1 ESCAPE '\' AND note <> 'why?' AND id = $2 LIMIT $3`,
		DialectPostgres.Rebind(q))
	require.Equal(t, q, DialectSQLite.Rebind(q))
}

func TestDialectStringAgg(t *testing.T) {
	t.Parallel()

	require.Equal(t, "group_concat(p.productname, ', ' ORDER BY p.productname)",
		DialectSQLite.StringAgg("p.productname", ", "))
	require.Equal(t, "string_agg(p.productname, ', ' ORDER BY p.productname)",
		DialectPostgres.StringAgg("p.productname", ", "))
}
