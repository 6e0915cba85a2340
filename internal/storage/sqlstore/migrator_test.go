package sqlstore

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestLoadMigrationsFromFS_PerDialect(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/sqlite/0001_init.up.sql":     {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"sql/sqlite/0001_init.down.sql":   {Data: []byte("DROP TABLE IF EXISTS a;")},
		"sql/sqlite/0002_more.up.sql":     {Data: []byte("CREATE TABLE b (id INTEGER);")},
		"sql/sqlite/0002_more.down.sql":   {Data: []byte("DROP TABLE IF EXISTS b;")},
		"sql/postgres/0001_init.up.sql":   {Data: []byte("CREATE TABLE a (id BIGINT);")},
		"sql/postgres/0001_init.down.sql": {Data: []byte("DROP TABLE IF EXISTS a;")},
	}

	migrations, err := loadMigrationsFromFS(fsys, DialectSQLite)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	require.Equal(t, int64(1), migrations[0].Version)
	require.Equal(t, "init", migrations[0].Name)
	require.Equal(t, int64(2), migrations[1].Version)
	require.Equal(t, "more", migrations[1].Name)

	migrations, err = loadMigrationsFromFS(fsys, DialectPostgres)
	require.NoError(t, err)
	require.Len(t, migrations, 1)
	require.Contains(t, migrations[0].UpSQL, "BIGINT")
}

func TestLoadMigrationsFromFS_Rejects(t *testing.T) {
	t.Parallel()

	cases := map[string]fstest.MapFS{
		"missing down": {
			"sql/sqlite/0001_init.up.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")},
		},
		"invalid name": {
			"sql/sqlite/not_a_migration.sql": {Data: []byte("SELECT 1;")},
		},
		"empty body": {
			"sql/sqlite/0001_init.up.sql":   {Data: []byte("   \n")},
			"sql/sqlite/0001_init.down.sql": {Data: []byte("DROP TABLE IF EXISTS a;")},
		},
		"name mismatch": {
			"sql/sqlite/0001_init.up.sql":    {Data: []byte("CREATE TABLE a (id INTEGER);")},
			"sql/sqlite/0001_other.down.sql": {Data: []byte("DROP TABLE IF EXISTS a;")},
		},
		"no files": {},
	}

	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := loadMigrationsFromFS(fsys, DialectSQLite)
			require.Error(t, err)
		})
	}
}

func TestEmbeddedMigrationsLoadForBothDialects(t *testing.T) {
	t.Parallel()

	for _, d := range []Dialect{DialectSQLite, DialectPostgres} {
		migrations, err := loadMigrationsFromFS(migrationsFS, d)
		require.NoError(t, err, d.String())
		require.NotEmpty(t, migrations)
		require.Equal(t, int64(1), migrations[0].Version)
	}
}

func TestMigrateUpDownStatus(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store testStore) {
		ctx := context.Background()

		version, applied, err := store.MigrationStatus(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(1), version)
		require.Equal(t, 1, applied)

		require.NoError(t, store.MigrateUp(ctx, 0), "re-running up is a no-op")

		require.NoError(t, store.MigrateDown(ctx, 1))
		version, applied, err = store.MigrationStatus(ctx)
		require.NoError(t, err)
		require.Zero(t, version)
		require.Zero(t, applied)

		require.NoError(t, store.MigrateUp(ctx, 0))
		version, _, err = store.MigrationStatus(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(1), version)
	})
}
