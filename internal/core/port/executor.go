package port

import "context"

// QueryExecutor runs one normalized statement against the database and
// returns its rows. Implementations must honor context cancellation and
// classify deadline overruns as domain.ErrTimeout.
type QueryExecutor interface {
	Execute(ctx context.Context, sql string) ([]map[string]any, error)
}
