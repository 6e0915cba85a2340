package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func sqliteFileDSN(t *testing.T) string {
	t.Helper()
	return "file:" + filepath.Join(t.TempDir(), "orders.db") + "?_pragma=foreign_keys(1)"
}

func TestRun_SQLiteUpStatusDown(t *testing.T) {
	dsn := sqliteFileDSN(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"-direction=status", "-dsn=" + dsn}, noEnv, &out))
	require.Equal(t, "migration status: driver=sqlite version=0 applied=0\n", out.String())

	out.Reset()
	require.NoError(t, run(ctx, []string{"-direction=up", "-dsn=" + dsn}, noEnv, &out))
	require.Equal(t, "migrate up ok: driver=sqlite version=1 applied=1\n", out.String())

	out.Reset()
	require.NoError(t, run(ctx, []string{"-direction=down", "-dsn=" + dsn}, noEnv, &out))
	require.Equal(t, "migrate down ok: driver=sqlite version=0 applied=0\n", out.String())
}

func TestRun_ReadsBackendFromEnv(t *testing.T) {
	dsn := sqliteFileDSN(t)
	lookup := func(key string) (string, bool) {
		switch key {
		case "DB_TYPE":
			return "sqlite", true
		case "ORDERS_DATABASE_DSN":
			return dsn, true
		}
		return "", false
	}

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-direction=up"}, lookup, &out))
	require.Contains(t, out.String(), "version=1")
}

func TestRun_PostgresRequiresDSN(t *testing.T) {
	err := run(context.Background(), []string{"-driver=pg", "-direction=status"}, noEnv, &bytes.Buffer{})
	require.ErrorContains(t, err, "is required for postgres")
}

func TestRun_UnsupportedDirection(t *testing.T) {
	err := run(context.Background(), []string{"-direction=sideways", "-dsn=" + sqliteFileDSN(t)}, noEnv, &bytes.Buffer{})
	require.ErrorContains(t, err, "unsupported direction")
}

func TestRun_BadFlag(t *testing.T) {
	err := run(context.Background(), []string{"-bogus"}, noEnv, &bytes.Buffer{})
	require.Error(t, err)
}

func TestFailExits(t *testing.T) {
	if os.Getenv("MIGRATE_TEST_FAIL_EXIT") == "1" {
		fail("forced failure %d", 42)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFailExits")
	cmd.Env = append(os.Environ(), "MIGRATE_TEST_FAIL_EXIT=1")
	err := cmd.Run()
	require.Error(t, err)
	exitErr, ok := err.(*exec.ExitError)
	require.True(t, ok)
	require.NotZero(t, exitErr.ExitCode())
}
