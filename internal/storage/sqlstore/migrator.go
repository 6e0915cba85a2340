package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const migrationLockKey = int64(52817304)

var (
	//go:embed sql/sqlite/*.sql sql/postgres/*.sql
	migrationsFS embed.FS

	migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)
)

type migrationDirection string

const (
	migrationUp   migrationDirection = "up"
	migrationDown migrationDirection = "down"
)

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

func migrationsGlob(d Dialect) string {
	return path.Join("sql", d.String(), "*.sql")
}

func migrationTableDDL(d Dialect) string {
	appliedAt := "TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP"
	if d == DialectPostgres {
		appliedAt = "TIMESTAMPTZ NOT NULL DEFAULT NOW()"
	}
	return `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at ` + appliedAt + `
)`
}

// MigrateUp applies pending migrations; steps=0 applies all of them.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.migrate(ctx, migrationUp, steps)
}

// MigrateDown rolls back applied migrations; steps<=0 means one step.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.migrate(ctx, migrationDown, steps)
}

// MigrationStatus returns the latest applied version and the number of applied migrations.
func (s *Store) MigrationStatus(ctx context.Context) (int64, int, error) {
	if s == nil || s.db == nil {
		return 0, 0, fmt.Errorf("sql store is not initialized")
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(queryCtx, migrationTableDDL(s.dialect)); err != nil {
		return 0, 0, fmt.Errorf("ensure migration table: %w", err)
	}

	var (
		version int64
		count   int
	)
	if err := s.db.QueryRowContext(queryCtx, `
		SELECT COALESCE(MAX(version), 0), COUNT(*)
		FROM schema_migrations
	`).Scan(&version, &count); err != nil {
		return 0, 0, fmt.Errorf("query migration status: %w", err)
	}

	return version, count, nil
}

func (s *Store) migrate(ctx context.Context, direction migrationDirection, steps int) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sql store is not initialized")
	}

	migrations, err := loadMigrationsFromFS(migrationsFS, s.dialect)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	// SQLite runs on a single connection, so holding conn already serializes migrations.
	if s.dialect == DialectPostgres {
		lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if _, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		defer func() {
			_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockKey)
		}()
	}

	if _, err := conn.ExecContext(ctx, migrationTableDDL(s.dialect)); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	m := migrator{conn: conn, dialect: s.dialect}
	switch direction {
	case migrationUp:
		return m.applyUp(ctx, migrations, steps)
	case migrationDown:
		return m.applyDown(ctx, migrations, steps)
	default:
		return fmt.Errorf("unsupported migration direction: %s", direction)
	}
}

type migrator struct {
	conn    *sql.Conn
	dialect Dialect
}

func (m migrator) applyUp(ctx context.Context, migrations []migration, steps int) error {
	applied, err := m.loadAppliedVersions(ctx)
	if err != nil {
		return err
	}

	appliedSteps := 0
	for _, mg := range migrations {
		if applied[mg.Version] {
			continue
		}
		if err := m.applyOne(ctx, mg, migrationUp); err != nil {
			return err
		}
		appliedSteps++
		if steps > 0 && appliedSteps >= steps {
			break
		}
	}

	return nil
}

func (m migrator) applyDown(ctx context.Context, migrations []migration, steps int) error {
	versionMap := make(map[int64]migration, len(migrations))
	for _, mg := range migrations {
		versionMap[mg.Version] = mg
	}

	versions, err := m.loadAppliedVersionsDesc(ctx, steps)
	if err != nil {
		return err
	}

	for _, version := range versions {
		mg, ok := versionMap[version]
		if !ok {
			return fmt.Errorf("cannot rollback unknown migration version %d", version)
		}
		if err := m.applyOne(ctx, mg, migrationDown); err != nil {
			return err
		}
	}

	return nil
}

func (m migrator) applyOne(ctx context.Context, mg migration, direction migrationDirection) error {
	body, record := mg.UpSQL, `INSERT INTO schema_migrations (version, name) VALUES (?, ?)`
	recordArgs := []any{mg.Version, mg.Name}
	if direction == migrationDown {
		body, record = mg.DownSQL, `DELETE FROM schema_migrations WHERE version = ?`
		recordArgs = []any{mg.Version}
	}

	tx, err := m.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx (%s %d): %w", direction, mg.Version, err)
	}

	if _, err := tx.ExecContext(ctx, body); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("execute %s migration %d_%s: %w", direction, mg.Version, mg.Name, err)
	}

	if _, err := tx.ExecContext(ctx, m.dialect.Rebind(record), recordArgs...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record %s migration %d_%s: %w", direction, mg.Version, mg.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s migration %d_%s: %w", direction, mg.Version, mg.Name, err)
	}

	return nil
}

func (m migrator) loadAppliedVersions(ctx context.Context) (map[int64]bool, error) {
	rows, err := m.conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]bool)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration version: %w", err)
		}
		result[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}

	return result, nil
}

func (m migrator) loadAppliedVersionsDesc(ctx context.Context, limit int) ([]int64, error) {
	rows, err := m.conn.QueryContext(ctx, m.dialect.Rebind(`
		SELECT version
		FROM schema_migrations
		ORDER BY version DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations desc: %w", err)
	}
	defer rows.Close()

	versions := make([]int64, 0, limit)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration desc: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations desc: %w", err)
	}

	return versions, nil
}

func loadMigrationsFromFS(fsys fs.FS, dialect Dialect) ([]migration, error) {
	files, err := fs.Glob(fsys, migrationsGlob(dialect))
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no migration files found for %s", dialect)
	}

	byVersion := make(map[int64]*migration)
	for _, file := range files {
		base := path.Base(file)
		matches := migrationFilePattern.FindStringSubmatch(base)
		if len(matches) != 4 {
			return nil, fmt.Errorf("invalid migration file name: %s", base)
		}

		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version from %s: %w", base, err)
		}
		name, direction := matches[2], matches[3]

		bodyRaw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", file, err)
		}
		body := strings.TrimSpace(string(bodyRaw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", base)
		}

		mg, ok := byVersion[version]
		if !ok {
			mg = &migration{Version: version, Name: name}
			byVersion[version] = mg
		} else if mg.Name != name {
			return nil, fmt.Errorf("migration name mismatch for version %d: %s vs %s", version, mg.Name, name)
		}

		target := &mg.UpSQL
		if direction == "down" {
			target = &mg.DownSQL
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", direction, version)
		}
		*target = body
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, mg := range byVersion {
		if mg.UpSQL == "" || mg.DownSQL == "" {
			return nil, fmt.Errorf("migration %d_%s must have both up and down files", mg.Version, mg.Name)
		}
		migrations = append(migrations, *mg)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })

	if len(migrations) == 0 {
		return nil, errors.New("no migrations loaded")
	}
	return migrations, nil
}
