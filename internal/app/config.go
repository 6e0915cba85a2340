package app

import (
	"strings"
	"time"

	"github.com/vladislavdragonenkov/salesorders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/salesorders/internal/storage/sqlstore"
)

// DefaultSQLiteDSN is used when SQLite is selected without an explicit DSN.
const DefaultSQLiteDSN = "file:salesorders.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Config holds the process settings, resolved once at startup.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	DatabaseType sqlstore.Dialect
	// DatabaseDSN is required for PostgreSQL; SQLite falls back to DefaultSQLiteDSN.
	DatabaseDSN  string
	AutoMigrate  bool
	QueryTimeout time.Duration
	TxTimeout    time.Duration

	// KafkaBrokers is a comma separated list; empty disables order events.
	KafkaBrokers string
	EventsTopic  string

	DBProbeInterval time.Duration
}

// DefaultConfig returns local development settings backed by a SQLite file.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:        ":50051",
		MetricsAddr:     ":9090",
		DatabaseType:    sqlstore.DialectSQLite,
		AutoMigrate:     true,
		QueryTimeout:    5 * time.Second,
		TxTimeout:       10 * time.Second,
		EventsTopic:     kafka.TopicOrderEvents,
		DBProbeInterval: 10 * time.Second,
	}
}

// StoreConfig derives the connection settings for sqlstore.Open.
func (c Config) StoreConfig() sqlstore.Config {
	dsn := strings.TrimSpace(c.DatabaseDSN)
	if dsn == "" && c.DatabaseType != sqlstore.DialectPostgres {
		dsn = DefaultSQLiteDSN
	}
	return sqlstore.Config{
		Dialect:      c.DatabaseType,
		DSN:          dsn,
		QueryTimeout: c.QueryTimeout,
		TxTimeout:    c.TxTimeout,
	}
}

// Brokers splits KafkaBrokers, dropping empty entries.
func (c Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
