package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/guillermoBallester/rampart/internal/core/domain"
	"github.com/guillermoBallester/rampart/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type toolNameKey struct{}

// WithToolName returns a context carrying the MCP tool name for audit logging.
func WithToolName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, toolNameKey{}, name)
}

func toolNameFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(toolNameKey{}).(string); ok {
		return v
	}
	return ""
}

// GuardService runs the guardrail pipeline for one candidate statement:
// classify, validate, normalize, execute. Every failure class is folded
// into the returned envelope; nothing propagates as an unhandled fault.
type GuardService struct {
	validator *domain.Validator
	ceiling   int
	executor  port.QueryExecutor
	auditor   port.QueryAuditor
	logger    *slog.Logger
	tracer    trace.Tracer
	inst      port.Instrumentation
}

func NewGuardService(validator *domain.Validator, ceiling int, executor port.QueryExecutor, auditor port.QueryAuditor, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *GuardService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	return &GuardService{
		validator: validator,
		ceiling:   ceiling,
		executor:  executor,
		auditor:   auditor,
		logger:    logger,
		tracer:    tracer,
		inst:      inst,
	}
}

// Ceiling returns the configured row-count ceiling.
func (s *GuardService) Ceiling() int { return s.ceiling }

// Run processes one candidate SQL statement end-to-end and returns the
// result envelope. Rejected statements never reach the executor.
func (s *GuardService) Run(ctx context.Context, sql string) *domain.Envelope {
	ctx, span := s.tracer.Start(ctx, "GuardService.Run",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.statement", sql),
		),
	)
	defer span.End()

	stmt, err := domain.Classify(sql)
	if err != nil {
		return s.reject(ctx, span, sql, domain.ReasonParseAmbiguous, "query rejected: "+err.Error())
	}

	verdict := s.validator.Validate(stmt)
	if !verdict.Accepted {
		return s.reject(ctx, span, sql, verdict.Reason, verdict.Message())
	}

	norm, err := domain.Normalize(stmt, s.ceiling)
	if err != nil {
		return s.reject(ctx, span, sql, domain.ReasonParseAmbiguous, "query rejected: "+err.Error())
	}

	start := time.Now()
	rows, err := s.executor.Execute(ctx, norm.SQL)
	durationMS := time.Since(start).Milliseconds()

	s.inst.RecordQueryDuration(ctx, float64(durationMS))

	if err != nil {
		reason := domain.ReasonExecutionError
		if errors.Is(err, domain.ErrTimeout) {
			reason = domain.ReasonTimeout
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.inst.IncrementQueryErrors(ctx)
		s.audit(ctx, norm.SQL, string(reason), 0, durationMS, err)

		msg := err.Error()
		return &domain.Envelope{Accepted: true, Reason: reason, Error: &msg}
	}

	env := &domain.Envelope{Accepted: true, Reason: domain.ReasonOK, Rows: rows, RowCount: len(rows)}

	// A row count above the ceiling here means the normalizer missed a
	// case; truncate rather than crash and flag it for the caller.
	if len(rows) > s.ceiling {
		s.logger.ErrorContext(ctx, "result exceeded row ceiling after normalization",
			slog.Int("rows", len(rows)),
			slog.Int("ceiling", s.ceiling),
		)
		env.Rows = rows[:s.ceiling]
		env.RowCount = s.ceiling
		env.Truncated = true
	}

	s.inst.IncrementQueryCount(ctx)
	span.SetAttributes(attribute.Int("db.response.rows", env.RowCount))
	s.audit(ctx, norm.SQL, string(domain.ReasonOK), env.RowCount, durationMS, nil)

	return env
}

func (s *GuardService) reject(ctx context.Context, span trace.Span, sql string, reason domain.Reason, msg string) *domain.Envelope {
	s.logger.WarnContext(ctx, "statement rejected",
		slog.String("db.statement", sql),
		slog.String("reason", string(reason)),
	)
	span.SetStatus(codes.Error, msg)
	s.inst.IncrementRejections(ctx)
	s.audit(ctx, sql, string(reason), 0, 0, errors.New(msg))

	return domain.Reject(reason, msg)
}

func (s *GuardService) audit(ctx context.Context, sql, verdict string, rows int, durationMS int64, err error) {
	s.auditor.Record(ctx, port.AuditEntry{
		Tool:         toolNameFromCtx(ctx),
		SQL:          sql,
		Verdict:      verdict,
		RowsReturned: rows,
		DurationMS:   durationMS,
		Err:          err,
	})
}
