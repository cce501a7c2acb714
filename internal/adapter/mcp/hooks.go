package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/guillermoBallester/rampart/internal/core/domain"
	"github.com/guillermoBallester/rampart/internal/core/port"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// callState holds per-request timing and span data.
type callState struct {
	start time.Time
	span  trace.Span
}

// ToolCallHooks creates MCP hooks that log tool calls and optionally record
// OTel spans/metrics. Query tool results additionally carry the guard
// verdict on the span and log line, so a rejected query is visible in
// telemetry without parsing response bodies.
func ToolCallHooks(logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.Hooks {
	hooks := &server.Hooks{}
	var calls sync.Map // id -> *callState

	hooks.AddBeforeCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest) {
		state := &callState{start: time.Now()}

		if tracer != nil {
			_, span := tracer.Start(ctx, "mcp.tool.call",
				trace.WithAttributes(
					attribute.String("mcp.tool", req.Params.Name),
				),
			)
			state.span = span
		}

		calls.Store(id, state)
	})

	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, result any) {
		var duration time.Duration
		var span trace.Span

		if v, ok := calls.LoadAndDelete(id); ok {
			state := v.(*callState)
			duration = time.Since(state.start)
			span = state.span
		}

		level := slog.LevelInfo
		isErr := false

		if r, ok := result.(*mcp.CallToolResult); ok && r.IsError {
			level = slog.LevelError
			isErr = true
		}

		attrs := []slog.Attr{
			slog.String("rpc.method", "tools/call"),
			slog.String("mcp.tool", req.Params.Name),
			slog.Duration("duration", duration),
			slog.Bool("error", isErr),
		}

		if env := guardOutcome(req.Params.Name, result); env != nil {
			attrs = append(attrs,
				slog.Bool("query.accepted", env.Accepted),
				slog.String("query.reason", string(env.Reason)),
			)
			if span != nil {
				span.SetAttributes(
					attribute.Bool("rampart.query.accepted", env.Accepted),
					attribute.String("rampart.query.reason", string(env.Reason)),
					attribute.Int("rampart.query.rows", env.RowCount),
					attribute.Bool("rampart.query.truncated", env.Truncated),
				)
			}
		}

		logger.LogAttrs(ctx, level, "tool call", attrs...)

		if inst != nil {
			inst.RecordToolDuration(ctx, float64(duration.Milliseconds()))
		}

		if span != nil {
			if isErr {
				span.SetStatus(codes.Error, "tool returned error")
				span.RecordError(fmt.Errorf("tool %s returned error", req.Params.Name))
			}
			span.End()
		}
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		var duration time.Duration
		var span trace.Span

		if v, ok := calls.LoadAndDelete(id); ok {
			state := v.(*callState)
			duration = time.Since(state.start)
			span = state.span
		}

		toolName := ""
		if req, ok := message.(*mcp.CallToolRequest); ok {
			toolName = req.Params.Name
		}
		if toolName != "" {
			logger.LogAttrs(ctx, slog.LevelError, "tool call",
				slog.String("rpc.method", "tools/call"),
				slog.String("mcp.tool", toolName),
				slog.Duration("duration", duration),
				slog.Bool("error", true),
				slog.String("error.message", err.Error()),
			)
		}

		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
		}
	})

	return hooks
}

// guardOutcome decodes the pipeline envelope out of a query tool result.
// Both accepted results and rejections embed the envelope as their first
// text content; anything else (other tools, argument errors) yields nil.
func guardOutcome(tool string, result any) *domain.Envelope {
	if tool != "query" {
		return nil
	}
	r, ok := result.(*mcp.CallToolResult)
	if !ok || len(r.Content) == 0 {
		return nil
	}
	tc, ok := r.Content[0].(mcp.TextContent)
	if !ok {
		return nil
	}
	var env domain.Envelope
	if err := json.Unmarshal([]byte(tc.Text), &env); err != nil || env.Reason == "" {
		return nil
	}
	return &env
}
