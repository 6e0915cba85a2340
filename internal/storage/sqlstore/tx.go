package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/salesorders/internal/metrics"
)

// TxFunc runs statements inside one transaction scope. The Querier it gets
// cannot open another transaction.
type TxFunc func(ctx context.Context, tx Querier) error

// WithTx opens a transaction bounded by the store's TxTimeout, runs fn and
// commits when fn returns nil. On error or panic the transaction is rolled
// back and fn's error is returned unchanged; a failed rollback is logged, never
// returned in its place. A failed commit is not retried.
func (s *Store) WithTx(ctx context.Context, fn TxFunc) error {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	s.metrics.TransactionStarted()

	done := false
	defer func() {
		if done {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.WithError(rbErr).Error("rollback transaction")
		}
		s.metrics.TransactionFinished(metrics.OutcomeRolledBack)
	}()

	if err := fn(ctx, runner{conn: sqlTx, dialect: s.dialect}); err != nil {
		return err
	}

	done = true
	if err := sqlTx.Commit(); err != nil {
		s.metrics.TransactionFinished(metrics.OutcomeCommitFail)
		return fmt.Errorf("commit tx: %w", err)
	}
	s.metrics.TransactionFinished(metrics.OutcomeCommitted)
	return nil
}
