// Package main is the entry point for the edge orchestrator process.
//
// The orchestrator loads a declared topology and application, probes node
// resources, solves an initial placement and invocation path, deploys the
// application's containers, then runs the steady-state adaptation loop:
// on every node failure it re-solves only the invocation path, never the
// placement, and swaps the live path or reports terminal infeasibility.
//
// Alongside the adaptation loop the process exposes the same operational
// surface as the rest of the fleet: a gRPC health endpoint, a Prometheus
// /metrics endpoint, OpenTelemetry tracing, structured JSON logs, and an
// audit trail of every adaptation round, persisted to Postgres via
// internal/history. When http.port is set it also serves a bearer-token
// gated GET /report of its own live state, for the report CLI's
// remote-fetch mode.
//
// A "report" subcommand renders the most recently persisted deployment
// state as JSON, Markdown, CSV, Excel, or PDF, either from the local
// history database or, with --remote, from a peer orchestrator's /report
// endpoint:
//
//	orchestrator report --format=markdown --out=deployment.md
//	orchestrator report --remote=http://peer:8080/report --format=json
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"edgeorch/internal/agent"
	"edgeorch/internal/controller"
	"edgeorch/internal/descriptor"
	"edgeorch/internal/history"
	"edgeorch/internal/model"
	"edgeorch/internal/monitor"
	"edgeorch/internal/probe"
	"edgeorch/internal/report"
	"edgeorch/internal/report/generator"
	"edgeorch/internal/solver"
	"edgeorch/pkg/audit"
	"edgeorch/pkg/cache"
	"edgeorch/pkg/config"
	"edgeorch/pkg/database"
	"edgeorch/pkg/logger"
	"edgeorch/pkg/metrics"
	"edgeorch/pkg/passhash"
	"edgeorch/pkg/ratelimit"
	"edgeorch/pkg/server"
	"edgeorch/pkg/telemetry"
)

// agentPasswordEnvVar carries the cleartext node-agent credential at
// process start. It is never written to the config file; only its argon2id
// hash (cfg.Agent.PasswordHash) is persisted there.
const agentPasswordEnvVar = "EDGEORCH_AGENT_PASSWORD"

// resolveAgentPassword verifies the cleartext credential supplied via
// agentPasswordEnvVar against the hash stored at rest and returns the
// cleartext for use in outbound basic-auth headers. If no hash is
// configured, or the env var is unset, it returns "" and agent.Client
// falls back to the reference implementation's default credential.
func resolveAgentPassword(passwordHash string) string {
	if passwordHash == "" {
		return ""
	}
	plain := os.Getenv(agentPasswordEnvVar)
	if plain == "" {
		logger.Log.Warn("agent.password_hash is set but " + agentPasswordEnvVar + " is unset; using default credential")
		return ""
	}
	ok, err := passhash.VerifyPassword(plain, passwordHash)
	if err != nil || !ok {
		logger.Log.Warn("node-agent credential does not match configured hash; using default credential", "error", err)
		return ""
	}
	return plain
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "report" {
		if err := runReport(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "report:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "orchestrator:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithServiceDefaults("edgeorch", 50051)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	ctx := context.Background()

	if cfg.Tracing.Enabled {
		tp, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     cfg.Tracing.Enabled,
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.App.Name,
			Version:     cfg.App.Version,
			Environment: cfg.App.Environment,
			SampleRate:  cfg.Tracing.SampleRate,
		})
		if err != nil {
			logger.Log.Warn("failed to init telemetry", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Log.Warn("failed to shutdown telemetry", "error", err)
				}
			}()
		}
	}

	metrics.InitMetrics(cfg.Metrics.Namespace, cfg.App.Name)

	nodes, err := descriptor.LoadTopology(cfg.Topology.NodesFile)
	if err != nil {
		return fmt.Errorf("load topology: %w", err)
	}
	app, err := descriptor.LoadApplication(cfg.Topology.AppFile)
	if err != nil {
		return fmt.Errorf("load application: %w", err)
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter, err = ratelimit.New(&ratelimit.Config{
			Requests:        cfg.RateLimit.Requests,
			Window:          cfg.RateLimit.Window,
			Strategy:        cfg.RateLimit.Strategy,
			Backend:         cfg.RateLimit.Backend,
			BurstSize:       cfg.RateLimit.BurstSize,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
			RedisAddr:       cfg.RateLimit.RedisAddr,
		})
		if err != nil {
			logger.Log.Warn("failed to create agent rate limiter, continuing without it", "error", err)
			limiter = nil
		}
	}

	agentClient := agent.NewClient(agent.Config{
		ControlTimeout:      cfg.Agent.ControlTimeout,
		ContainerTimeout:    cfg.Agent.ContainerTimeout,
		LivenessDialTimeout: cfg.Agent.LivenessDialTimeout,
		Username:            cfg.Agent.Username,
		Password:            resolveAgentPassword(cfg.Agent.PasswordHash),
	}, limiter)

	var hist history.Repository
	if cfg.Database.Driver != "" {
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			logger.Log.Warn("failed to connect history database, adaptation events will not be persisted", "error", err)
		} else {
			defer db.Close()
			if cfg.Database.AutoMigrate {
				if err := database.RunMigrations(ctx, db.Pool(), &cfg.Database, history.Migrations, history.MigrationsDir); err != nil {
					logger.Log.Warn("failed to run history migrations", "error", err)
				}
			}
			hist = history.NewPostgresRepository(db)
		}
	}

	auditLogger, err := audit.New(&audit.Config{
		Enabled:         cfg.Audit.Enabled,
		Backend:         cfg.Audit.Backend,
		FilePath:        cfg.Audit.FilePath,
		BufferSize:      cfg.Audit.BufferSize,
		FlushPeriod:     cfg.Audit.FlushPeriod,
		ExcludeMethods:  cfg.Audit.ExcludeMethods,
		IncludeRequest:  cfg.Audit.IncludeRequest,
		IncludeResponse: cfg.Audit.IncludeResponse,
	})
	if err != nil {
		logger.Log.Warn("failed to create audit logger, adaptation rounds will not be audited", "error", err)
		auditLogger = nil
	} else {
		audit.SetGlobal(auditLogger)
	}

	var oracle solver.LatencyOracle
	switch cfg.Solver.LatencyOracle {
	case "tcp":
		oracle = solver.NewTCPOracle(cfg.Solver.OracleTimeout)
	default:
		oracle = solver.NewRandomOracle(cfg.Solver.OracleSeed)
	}

	mon := monitor.New(agentClient, cfg.Monitor.PollInterval, logger.Log)
	defer mon.Close()

	var pathCache *solver.PathCache
	if cfg.Cache.Enabled {
		backend, err := cache.New(cache.FromConfig(&cfg.Cache))
		if err != nil {
			logger.Log.Warn("failed to create invocation-path cache, continuing without it", "error", err)
		} else {
			pathCache = solver.NewPathCache(backend, cfg.Solver.PathCacheTTL)
		}
	}

	ctrl := controller.New(controller.Dependencies{
		AgentClient: agentClient,
		Prober:      probe.New(agentClient, logger.Log),
		Monitor:     mon,
		Placer:      solver.NewPlacementSolver(),
		Pather:      solver.NewPathSolver(),
		Oracle:      oracle,
		PathCache:   pathCache,
		History:     hist,
		Auditor:     auditLogger,
		Log:         logger.Log,
	}, app)

	adaptCtx, cancelAdapt := context.WithCancel(ctx)
	defer cancelAdapt()

	// A node-failure cascade or an unreachable initial topology that leaves
	// no invocation path satisfying the application's SLA is terminal: the
	// orchestrator cannot self-heal further and must exit non-zero rather
	// than keep serving a gRPC API over a deployment that no longer meets
	// its contract.
	if err := ctrl.Start(adaptCtx, nodes, controller.NewAgentDeployer(agentClient)); err != nil {
		if err != controller.ErrNoFeasiblePath {
			return fmt.Errorf("controller startup: %w", err)
		}
		logger.Log.Error("no feasible invocation path at startup", "error", err)
		return fmt.Errorf("controller startup: %w", err)
	}

	adaptErrCh := make(chan error, 1)
	go func() {
		adaptErrCh <- ctrl.Run(adaptCtx)
	}()

	if cfg.HTTP.Port != 0 {
		jwtMgr := passhash.NewJWTManager(&passhash.JWTConfig{
			SecretKey:         cfg.Auth.JWTSecret,
			AccessTokenExpiry: cfg.Auth.TokenExpiry,
			Issuer:            cfg.Auth.Issuer,
		})
		go serveReportEndpoint(cfg.HTTP.Port, jwtMgr, ctrl, app)
	}

	srv := server.New(cfg)
	logger.Info("starting edge orchestrator",
		"grpc_port", cfg.GRPC.Port,
		"metrics_port", cfg.Metrics.Port,
		"environment", cfg.App.Environment,
		"version", cfg.App.Version,
		"nodes", len(nodes),
		"microservices", len(app.Microservices),
	)

	srvErrCh := make(chan error, 1)
	go func() { srvErrCh <- srv.Run() }()

	select {
	case err := <-srvErrCh:
		cancelAdapt()
		return err
	case err := <-adaptErrCh:
		if err == nil || err == context.Canceled {
			// Clean shutdown of the adaptation loop (ctx cancellation);
			// the server's own lifecycle decides when run() returns.
			return <-srvErrCh
		}
		logger.Log.Error("adaptation loop stopped, shutting down", "error", err)
		srv.Stop()
		cancelAdapt()
		return fmt.Errorf("adaptation loop: %w", err)
	}
}

// serveReportEndpoint backs the report CLI's remote-fetch mode: GET /report
// renders this process's own live placement/invocation-path state on
// demand, gated on a bearer token signed by the same JWTManager the CLI
// uses to mint one. Runs until the listener fails; the caller backgrounds
// it and logs the failure.
func serveReportEndpoint(port int, jwtMgr *passhash.JWTManager, ctrl *controller.Controller, app model.Application) {
	mux := http.NewServeMux()
	mux.HandleFunc("/report", func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if _, err := jwtMgr.ValidateToken(token); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		format := r.URL.Query().Get("format")
		if format == "" {
			format = "json"
		}
		gen, err := generator.New(generator.Format(format))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		rep := report.Build(app, ctrl.Topology(), ctrl.Placement(), ctrl.Path(), nil, nil)
		data, err := gen.Generate(r.Context(), rep)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(data)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Log.Info("starting report endpoint", "port", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Log.Error("report endpoint stopped", "error", err)
	}
}

func runReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	format := fs.String("format", "json", "output format: json, markdown, csv, excel, pdf")
	out := fs.String("out", "", "output file path (defaults to stdout)")
	limit := fs.Int("limit", 20, "number of recent adaptation events to include")
	remote := fs.String("remote", "", "fetch a rendered report from a remote orchestrator's /report endpoint instead of rendering from the local database")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()

	var data []byte
	if *remote != "" {
		data, err = fetchRemoteReport(ctx, cfg, *remote, *format)
	} else {
		data, err = buildLocalReport(ctx, cfg, *format, *limit)
	}
	if err != nil {
		return err
	}

	if *out == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(*out, data, 0o644)
}

// buildLocalReport renders a DeploymentReport from the adaptation events
// persisted to this process's own history database.
func buildLocalReport(ctx context.Context, cfg *config.Config, format string, limit int) ([]byte, error) {
	nodes, err := descriptor.LoadTopology(cfg.Topology.NodesFile)
	if err != nil {
		return nil, fmt.Errorf("load topology: %w", err)
	}
	app, err := descriptor.LoadApplication(cfg.Topology.AppFile)
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}
	topo := model.NewTopology(nodes)

	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect history database: %w", err)
	}
	defer db.Close()
	hist := history.NewPostgresRepository(db)

	records, err := hist.ListRecent(ctx, limit, nil)
	if err != nil {
		return nil, fmt.Errorf("list recent adaptation events: %w", err)
	}

	recs := make([]history.Record, len(records))
	for i, r := range records {
		recs[i] = *r
	}

	placement, path := latestPlacementAndPath(records)

	rep := report.Build(app, topo, placement, path, nil, recs)

	gen, err := generator.New(generator.Format(format))
	if err != nil {
		return nil, fmt.Errorf("select generator: %w", err)
	}

	data, err := gen.Generate(ctx, rep)
	if err != nil {
		return nil, fmt.Errorf("generate report: %w", err)
	}
	return data, nil
}

// fetchRemoteReport mints a short-lived bearer token and fetches an
// already-rendered report from another orchestrator process's /report
// endpoint, for operators who only have network access to a peer's
// health/metrics surface and not its history database.
func fetchRemoteReport(ctx context.Context, cfg *config.Config, remoteURL, format string) ([]byte, error) {
	jwtMgr := passhash.NewJWTManager(&passhash.JWTConfig{
		SecretKey:         cfg.Auth.JWTSecret,
		AccessTokenExpiry: cfg.Auth.TokenExpiry,
		Issuer:            cfg.Auth.Issuer,
	})
	token, err := jwtMgr.GenerateAccessToken("report-cli", "report-cli", "reader")
	if err != nil {
		return nil, fmt.Errorf("sign remote-report token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL+"?format="+format, nil)
	if err != nil {
		return nil, fmt.Errorf("build remote report request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch remote report: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("remote report fetch: non-2xx response: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// latestPlacementAndPath reconstructs the most recent placement and
// invocation path from a history listing ordered newest-first.
func latestPlacementAndPath(records []*history.Record) (model.Placement, model.InvocationPath) {
	if len(records) == 0 {
		return model.Placement{}, model.InvocationPath{}
	}

	latest := records[0]

	placement := make(model.Placement, len(latest.Placement))
	for msID, nodeIDs := range latest.Placement {
		ids := make([]model.NodeID, len(nodeIDs))
		for i, n := range nodeIDs {
			ids[i] = model.NodeID(n)
		}
		placement[model.MicroserviceID(msID)] = ids
	}

	path := make(model.InvocationPath, len(latest.Path))
	for msID, nodeID := range latest.Path {
		path[model.MicroserviceID(msID)] = model.NodeID(nodeID)
	}

	return placement, path
}
