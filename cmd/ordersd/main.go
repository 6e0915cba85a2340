package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salesorders/internal/app"
	"github.com/vladislavdragonenkov/salesorders/internal/storage/sqlstore"
	"github.com/vladislavdragonenkov/salesorders/internal/version"
)

const (
	envDatabaseType    = "DB_TYPE"
	envDatabaseDSN     = "ORDERS_DATABASE_DSN"
	envAutoMigrate     = "ORDERS_AUTO_MIGRATE"
	envQueryTimeout    = "ORDERS_QUERY_TIMEOUT"
	envTxTimeout       = "ORDERS_TX_TIMEOUT"
	envGRPCAddr        = "ORDERS_GRPC_ADDR"
	envMetricsAddr     = "ORDERS_HTTP_ADDR"
	envKafkaBrokers    = "KAFKA_BROKERS"
	envEventsTopic     = "ORDERS_EVENTS_TOPIC"
	envDBProbeInterval = "ORDERS_DB_PROBE_INTERVAL"
	envLogLevel        = "ORDERS_LOG_LEVEL"
)

type envLookup func(key string) (string, bool)

func setupLogger(lookup envLookup) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	if raw, ok := lookup(envLogLevel); ok && strings.TrimSpace(raw) != "" {
		level, err := log.ParseLevel(strings.TrimSpace(raw))
		if err != nil {
			log.WithError(err).Warn("invalid log level, keeping info")
			return
		}
		log.SetLevel(level)
	}
}

// readConfigFromEnv overlays environment values on the defaults. Invalid
// values keep the default and are reported as warnings.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	if v, ok := lookupTrimmed(lookup, envDatabaseType); ok {
		cfg.DatabaseType = sqlstore.ParseDialect(v)
	}
	if v, ok := lookupTrimmed(lookup, envDatabaseDSN); ok {
		cfg.DatabaseDSN = v
	}
	if v, ok := lookupTrimmed(lookup, envGRPCAddr); ok {
		cfg.GRPCAddr = v
	}
	if v, ok := lookupTrimmed(lookup, envMetricsAddr); ok {
		cfg.MetricsAddr = v
	}
	if v, ok := lookupTrimmed(lookup, envKafkaBrokers); ok {
		cfg.KafkaBrokers = v
	}
	if v, ok := lookupTrimmed(lookup, envEventsTopic); ok {
		cfg.EventsTopic = v
	}

	if v, ok := lookupTrimmed(lookup, envAutoMigrate); ok {
		parsed, err := parseBool(v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envAutoMigrate, err))
		} else {
			cfg.AutoMigrate = parsed
		}
	}

	positive := func(d time.Duration) bool { return d > 0 }
	durations := []struct {
		key    string
		target *time.Duration
	}{
		{envQueryTimeout, &cfg.QueryTimeout},
		{envTxTimeout, &cfg.TxTimeout},
		{envDBProbeInterval, &cfg.DBProbeInterval},
	}
	for _, d := range durations {
		v, ok := lookupTrimmed(lookup, d.key)
		if !ok {
			continue
		}
		parsed, err := parseDuration(v, positive, "must be > 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", d.key, err))
			continue
		}
		*d.target = parsed
	}

	return cfg, warnings
}

func lookupTrimmed(lookup envLookup, key string) (string, bool) {
	v, ok := lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q: %w", raw, err)
	}
	if valid != nil && !valid(v) {
		return 0, fmt.Errorf("invalid duration value %s: %s", v, rule)
	}
	return v, nil
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	setupLogger(os.LookupEnv)
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, w := range warnings {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"grpc_addr":     cfg.GRPCAddr,
		"metrics_addr":  cfg.MetricsAddr,
		"database_type": cfg.DatabaseType.String(),
		"auto_migrate":  cfg.AutoMigrate,
		"build":         version.String(),
	}).Info("starting sales orders service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("service exited with error")
	}

	log.Info("sales orders service stopped")
}
