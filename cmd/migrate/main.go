package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vladislavdragonenkov/salesorders/internal/app"
	"github.com/vladislavdragonenkov/salesorders/internal/storage/sqlstore"
)

const (
	defaultTimeout = 30 * time.Second
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.LookupEnv, os.Stdout); err != nil {
		fail("%v", err)
	}
}

// run applies the requested migration direction. The backend comes from
// -driver/-dsn, falling back to DB_TYPE and ORDERS_DATABASE_DSN.
func run(ctx context.Context, args []string, lookup func(string) (string, bool), out io.Writer) error {
	var (
		direction string
		steps     int
		driver    string
		dsn       string
	)

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&direction, "direction", "up", "migration direction: up|down|status")
	fs.IntVar(&steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	fs.StringVar(&driver, "driver", "", "database type: sqlite|pg (fallback: DB_TYPE)")
	fs.StringVar(&dsn, "dsn", "", "database DSN (fallback: ORDERS_DATABASE_DSN)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := app.DefaultConfig()
	cfg.DatabaseType = sqlstore.ParseDialect(firstNonEmpty(driver, env(lookup, "DB_TYPE")))
	cfg.DatabaseDSN = firstNonEmpty(dsn, env(lookup, "ORDERS_DATABASE_DSN"))

	storeCfg := cfg.StoreConfig()
	if storeCfg.DSN == "" {
		return fmt.Errorf("ORDERS_DATABASE_DSN (or -dsn) is required for %s", storeCfg.Dialect)
	}

	store, err := sqlstore.Open(ctx, storeCfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", storeCfg.Dialect, err)
	}
	defer store.Close()

	var label string
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "up":
		if err := store.MigrateUp(ctx, steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
		label = "migrate up ok"
	case "down":
		if err := store.MigrateDown(ctx, steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
		label = "migrate down ok"
	case "status":
		label = "migration status"
	default:
		return fmt.Errorf("unsupported direction: %s (use up|down|status)", direction)
	}

	version, count, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s: driver=%s version=%d applied=%d\n", label, storeCfg.Dialect, version, count)
	return err
}

func env(lookup func(string) (string, bool), key string) string {
	v, _ := lookup(key)
	return strings.TrimSpace(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
