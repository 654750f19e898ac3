package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "tandem/pkg/domain-errors"
	txctx "tandem/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// postgresTxRunner runs the dissolve/block cascades inside one SQL
// transaction. The transaction travels via context so each postgres store
// joins it transparently.
type postgresTxRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func newPostgresTxRunner(db *sql.DB) *postgresTxRunner {
	return &postgresTxRunner{db: db}
}

func (t *postgresTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txctx.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
