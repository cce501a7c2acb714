package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guillermoBallester/rampart/internal/core/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// queryCanceled is PostgreSQL's SQLSTATE for a statement_timeout cancel.
const queryCanceled = "57014"

// Executor runs normalized statements on a read-only transaction with a
// server-side statement timeout. Each call acquires a connection from the
// pool for exactly one statement; a failed or timed-out transaction is
// rolled back, never reused.
type Executor struct {
	pool         *pgxpool.Pool
	readOnly     bool
	queryTimeout time.Duration
}

func NewExecutor(pool *pgxpool.Pool, readOnly bool, queryTimeout time.Duration) *Executor {
	return &Executor{
		pool:         pool,
		readOnly:     readOnly,
		queryTimeout: queryTimeout,
	}
}

func (e *Executor) Execute(ctx context.Context, sql string) ([]map[string]any, error) {
	// Defense in depth: the textual guard already ran, but the statement
	// must also survive PostgreSQL's own parser as a single SELECT before
	// it touches a connection.
	if err := deepCheck(sql); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{
		AccessMode: e.accessMode(),
	})
	if err != nil {
		return nil, classify(fmt.Errorf("beginning transaction: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Enforce the timeout at the database level so PostgreSQL cancels the
	// query server-side even if the Go context is cancelled first.
	// SET LOCAL scopes to this transaction only.
	timeoutMS := e.queryTimeout.Milliseconds()
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%d'", timeoutMS)); err != nil {
		return nil, classify(fmt.Errorf("setting statement timeout: %w", err))
	}

	rows, err := tx.Query(ctx, sql)
	if err != nil {
		return nil, classify(fmt.Errorf("executing query: %w", err))
	}
	defer rows.Close()

	results, err := rowsToMaps(rows)
	if err != nil {
		return nil, classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classify(fmt.Errorf("committing transaction: %w", err))
	}

	return results, nil
}

func (e *Executor) accessMode() pgx.TxAccessMode {
	if e.readOnly {
		return pgx.ReadOnly
	}
	return pgx.ReadWrite
}

// deepCheck re-parses the statement with the real PostgreSQL parser and
// rejects anything that is not exactly one SELECT.
func deepCheck(sql string) error {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrParseAmbiguous, err)
	}
	if len(tree.Stmts) != 1 {
		return fmt.Errorf("%w: expected exactly one statement, got %d", domain.ErrParseAmbiguous, len(tree.Stmts))
	}
	stmt := tree.Stmts[0].Stmt
	if stmt == nil {
		return fmt.Errorf("%w: empty parse tree", domain.ErrParseAmbiguous)
	}
	if _, ok := stmt.Node.(*pg_query.Node_SelectStmt); !ok {
		return fmt.Errorf("%w: statement is not a SELECT", domain.ErrParseAmbiguous)
	}
	return nil
}

// classify maps deadline overruns, both client-side (context) and
// server-side (SQLSTATE 57014), to domain.ErrTimeout so callers can
// distinguish them from other driver failures.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == queryCanceled {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return err
}
