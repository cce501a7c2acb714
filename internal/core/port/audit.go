package port

import "context"

// AuditEntry represents a single auditable pipeline event, rejected and
// executed statements alike.
type AuditEntry struct {
	Tool         string
	SQL          string
	Verdict      string // envelope reason: ok, non_select, timeout, ...
	RowsReturned int
	DurationMS   int64
	Err          error
}

// QueryAuditor records pipeline audit events.
type QueryAuditor interface {
	Record(ctx context.Context, entry AuditEntry)
	Close() error
}
