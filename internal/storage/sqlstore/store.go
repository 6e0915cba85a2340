package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/vladislavdragonenkov/salesorders/internal/domain"
	"github.com/vladislavdragonenkov/salesorders/internal/metrics"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultQueryTimeout    = 5 * time.Second
	defaultTxTimeout       = 10 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
)

func init() {
	if err := sqlite.RegisterDeterministicScalarFunction("lower", 1, unicodeLower); err != nil {
		panic(fmt.Sprintf("register sqlite lower: %v", err))
	}
}

// unicodeLower replaces SQLite's built-in lower(), which folds ASCII only, so
// case-insensitive filters behave the same as strings.ToLower on the pattern.
func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// ErrConnection reports an unreachable or misconfigured backend.
var ErrConnection = errors.New("database connection failed")

// Config selects the backend and its limits.
type Config struct {
	Dialect Dialect
	DSN     string
	// QueryTimeout bounds a single read; TxTimeout bounds a whole transaction scope.
	QueryTimeout time.Duration
	TxTimeout    time.Duration
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger entry used by the store and its repositories.
func WithLogger(logger *log.Entry) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.StoreMetrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// Store is the process-wide database handle. It is safe for concurrent use;
// create it once with Open and release it with Close.
type Store struct {
	db           *sql.DB
	dialect      Dialect
	queryTimeout time.Duration
	txTimeout    time.Duration
	logger       *log.Entry
	metrics      *metrics.StoreMetrics
}

// Open connects to the backend named by cfg.Dialect and checks that it answers.
// There is no fallback to another backend: any failure is returned wrapped in ErrConnection.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	dialect := cfg.Dialect
	if dialect == "" {
		dialect = DialectSQLite
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("%w: %s dsn is empty", ErrConnection, dialect)
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s connection: %v", ErrConnection, dialect, err)
	}
	configurePool(db, dialect)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", ErrConnection, dialect, err)
	}

	s := &Store{
		db:           db,
		dialect:      dialect,
		queryTimeout: positiveOr(cfg.QueryTimeout, defaultQueryTimeout),
		txTimeout:    positiveOr(cfg.TxTimeout, defaultTxTimeout),
		logger:       log.WithField("component", "sqlstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithField("dialect", dialect.String())
	return s, nil
}

// configurePool keeps SQLite on a single connection: it has one writer and an
// in-memory database lives only as long as its connection.
func configurePool(db *sql.DB, dialect Dialect) {
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
		return
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)
}

func positiveOr(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

// Dialect returns the backend variant chosen at Open.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// DB returns the raw handle for low-level access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks that the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sql store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// Close releases the handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// withQueryTimeout bounds a read. The returned cancel must run after the rows are consumed.
func (s *Store) withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}

// observe records the duration and outcome of a repository operation.
// It is meant to be deferred with a pointer to the named error result.
func (s *Store) observe(operation string, start time.Time, errp *error) {
	outcome := metrics.OutcomeOK
	if errp != nil && *errp != nil {
		outcome = metrics.OutcomeError
		if domain.IsNotFound(*errp) {
			outcome = metrics.OutcomeNotFound
		}
	}
	s.metrics.ObserveOperation(operation, outcome, time.Since(start))
}

// Result is what a statement without rows reports.
type Result struct {
	RowsAffected int64
}

// Querier runs statements either directly on the store or inside a transaction.
type Querier interface {
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	InsertReturningID(ctx context.Context, query string, args ...any) (int64, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type sqlRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// runner adapts *sql.DB and *sql.Tx to Querier, rebinding placeholders.
type runner struct {
	conn    sqlRunner
	dialect Dialect
}

func (r runner) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	res, err := r.conn.ExecContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return Result{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Result{}, fmt.Errorf("rows affected: %w", err)
	}
	return Result{RowsAffected: affected}, nil
}

// InsertReturningID runs an INSERT and returns the id column of the new row.
// An insert that yields no id fails with domain.ErrNoGeneratedID.
func (r runner) InsertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	var id sql.NullInt64
	err := r.conn.QueryRowContext(ctx, r.dialect.Rebind(query+" RETURNING id"), args...).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrNoGeneratedID
		}
		return 0, err
	}
	if !id.Valid {
		return 0, domain.ErrNoGeneratedID
	}
	return id.Int64, nil
}

func (r runner) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.conn.QueryRowContext(ctx, r.dialect.Rebind(query), args...)
}

func (r runner) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.conn.QueryContext(ctx, r.dialect.Rebind(query), args...)
}

// Exec runs a statement outside any transaction.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	return s.runner().Exec(ctx, query, args...)
}

// InsertReturningID runs an INSERT outside any transaction.
func (s *Store) InsertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	return s.runner().InsertReturningID(ctx, query, args...)
}

// QueryRow runs a statement returning at most one row.
func (s *Store) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.runner().QueryRow(ctx, query, args...)
}

// Query runs a statement returning any number of rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.runner().Query(ctx, query, args...)
}

func (s *Store) runner() runner {
	return runner{conn: s.db, dialect: s.dialect}
}

// isUniqueViolation reports a primary key or unique constraint failure on either backend.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

var _ Querier = (*Store)(nil)
