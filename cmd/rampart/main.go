package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guillermoBallester/rampart/internal/adapter/mcp"
	"github.com/guillermoBallester/rampart/internal/adapter/policy"
	"github.com/guillermoBallester/rampart/internal/adapter/postgres"
	"github.com/guillermoBallester/rampart/internal/audit"
	"github.com/guillermoBallester/rampart/internal/config"
	"github.com/guillermoBallester/rampart/internal/core/domain"
	"github.com/guillermoBallester/rampart/internal/core/port"
	"github.com/guillermoBallester/rampart/internal/core/service"
	"github.com/guillermoBallester/rampart/internal/telemetry"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel"
)

var version = "dev"

func main() {
	overrides, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if err := run(overrides); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses CLI flags into config.Overrides. Unset pointer fields
// defer to environment variables.
func parseFlags(args []string) (config.Overrides, error) {
	fs := flag.NewFlagSet("rampart", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var o config.Overrides

	db := fs.String("db", "", "database connection string (overrides DB_CONNECTION_STRING)")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	ceiling := fs.Int("row-limit-ceiling", 0, "maximum number of rows a query may return")
	queryTimeout := fs.Duration("query-timeout", 0, "per-query timeout")
	whitelist := fs.String("schema-whitelist", "", "comma-separated table whitelist")
	policyFile := fs.String("policy-file", "", "path to policy YAML")
	transport := fs.String("transport", "", `transport: "stdio" or "http"`)
	httpAddr := fs.String("http-addr", "", "HTTP listen address")
	httpToken := fs.String("http-bearer-token", "", "bearer token for HTTP transport")
	poolMax := fs.Int("pool-max-conns", 0, "maximum pool connections")
	poolMin := fs.Int("pool-min-conns", -1, "minimum pool connections")
	poolLifetime := fs.Duration("pool-max-conn-lifetime", 0, "maximum connection lifetime")

	fs.BoolVar(&o.OTelEnabled, "otel", false, "enable OpenTelemetry tracing and metrics")
	fs.BoolVar(&o.DryRun, "dry-run", false, "validate configuration and policy, then exit")
	fs.StringVar(&o.AuditLog, "audit-log", "", "path to NDJSON audit log file")

	if err := fs.Parse(args); err != nil {
		return config.Overrides{}, err
	}

	setIfUsed(fs, "db", func() { o.ConnectionString = db })
	setIfUsed(fs, "log-level", func() { o.LogLevel = logLevel })
	setIfUsed(fs, "row-limit-ceiling", func() { o.RowLimitCeiling = ceiling })
	setIfUsed(fs, "query-timeout", func() { o.QueryTimeout = queryTimeout })
	setIfUsed(fs, "schema-whitelist", func() { o.SchemaWhitelist = whitelist })
	setIfUsed(fs, "policy-file", func() { o.PolicyFile = policyFile })
	setIfUsed(fs, "transport", func() { o.Transport = transport })
	setIfUsed(fs, "http-addr", func() { o.HTTPAddr = httpAddr })
	setIfUsed(fs, "http-bearer-token", func() { o.HTTPBearerToken = httpToken })
	setIfUsed(fs, "pool-max-conns", func() {
		v := int32(*poolMax)
		o.PoolMaxConns = &v
	})
	setIfUsed(fs, "pool-min-conns", func() {
		v := int32(*poolMin)
		o.PoolMinConns = &v
	})
	setIfUsed(fs, "pool-max-conn-lifetime", func() { o.PoolMaxConnLifetime = poolLifetime })

	return o, nil
}

func setIfUsed(fs *flag.FlagSet, name string, set func()) {
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set()
		}
	})
}

func run(overrides config.Overrides) error {
	cfg, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr; stdout is reserved for the MCP stdio transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	ceiling := cfg.RowLimitCeiling
	whitelist := cfg.SchemaWhitelist
	forbidden := cfg.ForbiddenKeywords

	var pol *policy.Policy
	if cfg.PolicyFile != "" {
		pol, err = policy.LoadFromFile(cfg.PolicyFile)
		if err != nil {
			return fmt.Errorf("loading policy: %w", err)
		}
		if pol.Ceiling > 0 {
			ceiling = pol.Ceiling
		}
		if len(pol.Whitelist) > 0 {
			whitelist = pol.Whitelist
		}
		if len(pol.ForbiddenKeywords) > 0 {
			forbidden = pol.ForbiddenKeywords
		}
		logger.Info("policy loaded", slog.String("file", cfg.PolicyFile))
	}

	logger.Info("starting rampart",
		slog.String("version", version),
		slog.String("log_level", cfg.LogLevel.String()),
		slog.Bool("read_only", cfg.ReadOnly),
		slog.Int("row_limit_ceiling", ceiling),
		slog.Int("whitelist_size", len(whitelist)),
		slog.String("query_timeout", cfg.QueryTimeout.String()),
		slog.String("db", redactDSN(cfg.ConnectionString)),
	)

	if cfg.DryRun {
		logger.Info("dry run: configuration and policy are valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Observability (opt-in).
	tracer := telemetry.NoopTracer()
	var inst port.Instrumentation = port.NoopInstrumentation{}
	if cfg.OTelEnabled {
		provider, err := telemetry.Init(ctx, "rampart", version)
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Error("telemetry shutdown", slog.String("error", err.Error()))
			}
		}()
		tracer = otel.Tracer("rampart")
		inst = telemetry.NewInstruments()
	}

	pool, err := postgres.NewPool(ctx, cfg.ConnectionString, postgres.PoolSettings{
		MaxConns:        cfg.PoolMaxConns,
		MinConns:        cfg.PoolMinConns,
		MaxConnLifetime: cfg.PoolMaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	logger.Info("database pool connected", slog.String("db.system", "postgresql"))

	// Audit sink.
	var auditor port.QueryAuditor = audit.NoopAuditor{}
	if cfg.AuditLog != "" {
		fileAuditor, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer func() { _ = fileAuditor.Close() }()
		auditor = fileAuditor
		logger.Info("audit log enabled", slog.String("file", cfg.AuditLog))
	}

	// Adapters.
	var explorer port.SchemaExplorer = postgres.NewExplorer(pool)
	if pol != nil {
		explorer = policy.NewPolicyExplorer(explorer, pol)
	}
	executor := postgres.NewExecutor(pool, cfg.ReadOnly, cfg.QueryTimeout)

	// Domain + services.
	validator := domain.NewValidator(whitelist, forbidden)
	explorerSvc := service.NewExplorerService(explorer, whitelist)
	guardSvc := service.NewGuardService(validator, ceiling, executor, auditor, logger, tracer, inst)

	mcpServer := mcp.NewServer(version, explorerSvc, guardSvc, logger, tracer, inst)

	switch cfg.Transport {
	case "http":
		return serveHTTP(ctx, mcpServer, cfg, logger)
	default:
		stdioServer := mcpserver.NewStdioServer(mcpServer)
		logger.Info("serving MCP over stdio")
		if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil {
			return fmt.Errorf("stdio server: %w", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// serveHTTP runs the MCP server over streamable HTTP with bearer auth,
// panic recovery, and a health endpoint.
func serveHTTP(ctx context.Context, mcpServer *mcpserver.MCPServer, cfg *config.Config, logger *slog.Logger) error {
	streamable := mcpserver.NewStreamableHTTPServer(mcpServer)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/mcp", bearerAuthMiddleware(streamable, cfg.HTTPBearerToken))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           recoveryMiddleware(mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving MCP over HTTP", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// bearerAuthMiddleware rejects requests whose Authorization header does not carry the
// configured token.
func bearerAuthMiddleware(next http.Handler, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware converts handler panics into 500 responses.
func recoveryMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("handler panic",
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec),
				)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// redactDSN masks the password portion of a connection string for logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "***"
	}
	if _, has := u.User.Password(); has {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
