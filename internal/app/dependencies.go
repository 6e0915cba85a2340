package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salesorders/internal/domain"
	"github.com/vladislavdragonenkov/salesorders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/salesorders/internal/metrics"
	"github.com/vladislavdragonenkov/salesorders/internal/storage/sqlstore"
)

const (
	publishBreakerFailures = 5
	publishBreakerReset    = 30 * time.Second
)

// Dependencies is the object graph shared by the servers of one process.
type Dependencies struct {
	Store     *sqlstore.Store
	Orders    domain.OrderRepository
	Customers domain.CustomerRepository
	Suppliers domain.SupplierRepository

	producer *kafka.Producer
	logger   *log.Entry
}

// initRuntimeDependencies opens the configured backend and builds the repositories.
// A backend that cannot be reached is a startup error; there is no fallback.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry, registerer prometheus.Registerer) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	storeMetrics := metrics.NewStoreMetricsWithRegisterer(registerer)

	storeCfg := cfg.StoreConfig()
	logger.WithField("database_type", storeCfg.Dialect.String()).Info("database type")

	store, err := sqlstore.Open(ctx, storeCfg,
		sqlstore.WithLogger(logger.WithField("layer", "sqlstore")),
		sqlstore.WithMetrics(storeMetrics),
	)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := store.MigrateUp(ctx, 0); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		version, applied, err := store.MigrationStatus(ctx)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migration status: %w", err)
		}
		logger.WithFields(log.Fields{"version": version, "applied": applied}).Info("schema is up to date")
	}

	deps := &Dependencies{
		Store:     store,
		Customers: sqlstore.NewCustomerRepository(store),
		Suppliers: sqlstore.NewSupplierRepository(store),
		logger:    logger,
	}

	var orderOpts []sqlstore.OrderRepositoryOption
	if producer, err := initKafkaProducer(cfg.Brokers(), logger); err == nil && producer != nil {
		deps.producer = producer
		publisher := kafka.NewOrderEventPublisher(producer, cfg.EventsTopic)
		publishLogger := logger.WithField("topic", publisher.Topic())
		events := kafka.NewRetryingPublisher(
			publisher,
			kafka.DefaultRetryConfig(),
			kafka.NewCircuitBreaker(publishBreakerFailures, publishBreakerReset, publishLogger),
			publishLogger,
		)
		orderOpts = append(orderOpts, sqlstore.WithOrderEvents(events))
		publishLogger.Info("order events enabled")
	}
	deps.Orders = sqlstore.NewOrderRepository(store, orderOpts...)

	return deps, nil
}

// EventsEnabled reports whether committed order changes are published.
func (d *Dependencies) EventsEnabled() bool {
	return d != nil && d.producer != nil
}

// Close releases the producer and the store.
func (d *Dependencies) Close() {
	if d == nil {
		return
	}
	closeKafka(d.producer, d.logger)
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.logger.WithError(err).Warn("failed to close database")
		} else {
			d.logger.Info("database closed")
		}
	}
}
