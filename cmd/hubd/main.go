// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command hubd runs the hub: its lifecycle, the root manager and the
// control API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/hubcore/internal/actor"
	"github.com/ManuGH/hubcore/internal/config"
	"github.com/ManuGH/hubcore/internal/confirm"
	v1 "github.com/ManuGH/hubcore/internal/control/http/v1"
	"github.com/ManuGH/hubcore/internal/control/middleware"
	"github.com/ManuGH/hubcore/internal/daemon"
	"github.com/ManuGH/hubcore/internal/extension"
	"github.com/ManuGH/hubcore/internal/health"
	"github.com/ManuGH/hubcore/internal/hub"
	"github.com/ManuGH/hubcore/internal/lifecycle"
	hublog "github.com/ManuGH/hubcore/internal/log"
	"github.com/ManuGH/hubcore/internal/removal"
	"github.com/ManuGH/hubcore/internal/roots"
	"github.com/ManuGH/hubcore/internal/router"
	"github.com/ManuGH/hubcore/internal/telemetry"
	"github.com/ManuGH/hubcore/internal/version"
)

// errVersionShown stops run after -version.
var errVersionShown = errors.New("version shown")

type options struct {
	configPath string
}

func parseFlags(args []string, out io.Writer) (options, error) {
	fs := flag.NewFlagSet("hubd", flag.ContinueOnError)
	fs.SetOutput(out)
	showVersion := fs.Bool("version", false, "print version and exit")
	configPath := fs.String("config", "", "path to config file (YAML)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if *showVersion {
		_, _ = fmt.Fprintln(out, version.String())
		return options{}, errVersionShown
	}
	return options{configPath: strings.TrimSpace(*configPath)}, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stdout)
	if errors.Is(err, errVersionShown) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}

	// Safe defaults until the config is loaded.
	hublog.Configure(hublog.Config{
		Level:   "info",
		Service: "hubd",
		Version: version.Version,
	})
	logger := hublog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		logger.Fatal().
			Err(err).
			Str(hublog.FieldEvent, "daemon.failed").
			Msg("hubd exited with error")
	}
}

func run(ctx context.Context, opts options) error {
	loader := config.NewLoader(opts.configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	hublog.Configure(hublog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	logger := hublog.WithComponent("daemon")
	source := "env+defaults"
	if opts.configPath != "" {
		source = "file"
	}
	logger.Info().
		Str(hublog.FieldEvent, "config.loaded").
		Str("source", source).
		Str("path", opts.configPath).
		Msg("configuration loaded")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	g, err := buildGraph(cfg, lifecycleHandlers()...)
	if err != nil {
		g.close()
		_ = tp.Shutdown(context.WithoutCancel(ctx))
		return err
	}

	tracing := ""
	if cfg.Telemetry.Enabled {
		tracing = cfg.LogService
	}
	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewLifecycleChecker(g.lifecycle))

	apiHandler, err := v1.NewHandler(v1.Deps{
		Health:         hm,
		Lifecycle:      g.lifecycle,
		Hub:            g.hub,
		Router:         g.router,
		Manager:        cfg.Hub.ManagerComponent,
		RequestTimeout: cfg.RequestTimeout,
		RateLimit: middleware.RateLimitConfig{
			RequestLimit: cfg.RateLimit.Requests,
			WindowSize:   cfg.RateLimit.Window,
		},
		Stack: middleware.StackConfig{
			EnableMetrics:  true,
			TracingService: tracing,
			EnableLogging:  true,
		},
	})
	if err != nil {
		g.close()
		_ = tp.Shutdown(context.WithoutCancel(ctx))
		return fmt.Errorf("build control API: %w", err)
	}

	mgr, err := daemon.NewManager(daemon.ServerConfigFrom(cfg), daemon.Deps{
		Logger:         logger,
		APIHandler:     apiHandler,
		MetricsHandler: promhttp.Handler(),
		Hub:            g.lifecycle,
	})
	if err != nil {
		g.close()
		_ = tp.Shutdown(context.WithoutCancel(ctx))
		return fmt.Errorf("create daemon manager: %w", err)
	}
	// LIFO: the telemetry flush runs after the executor has drained.
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("executor", func(context.Context) error {
		g.close()
		return nil
	})

	holder := config.NewHolder(cfg, loader)
	holder.OnReload(func(next config.AppConfig) {
		if err := hublog.SetLevel(next.LogLevel); err != nil {
			logger.Warn().Err(err).Str("level", next.LogLevel).Msg("ignoring reloaded log level")
		}
		if err := g.confirmer.SetPolicy(next.Hub.ConfirmPolicy); err != nil {
			logger.Warn().Err(err).Str("policy", next.Hub.ConfirmPolicy).Msg("ignoring reloaded confirm policy")
		}
	})

	return daemon.NewApp(logger, mgr, g.lifecycle, holder).Run(ctx)
}

// lifecycleHandlers returns the extensions compiled into hubd. The stock
// binary has none, so every removal goes through the confirm policy;
// embedders build their own command around buildGraph with handlers.
func lifecycleHandlers() []extension.Handler {
	return nil
}

// graph is the in-process object graph of one hub process.
type graph struct {
	exec      *actor.Executor
	router    *router.Router
	hub       *hub.Hub
	lifecycle *lifecycle.Coordinator
	removal   *removal.Coordinator
	confirmer *confirm.Switch
	release   []func()
}

func (g *graph) close() {
	for i := len(g.release) - 1; i >= 0; i-- {
		g.release[i]()
	}
	g.release = nil
}

func buildGraph(cfg config.AppConfig, handlers ...extension.Handler) (*graph, error) {
	g := &graph{
		exec:   actor.New("hub"),
		router: router.New(),
	}
	g.release = append(g.release, g.exec.Close)

	policy, err := confirm.FromPolicy(cfg.Hub.ConfirmPolicy)
	if err != nil {
		return g, fmt.Errorf("confirm policy: %w", err)
	}
	g.confirmer = confirm.NewSwitch(policy)
	registry := roots.NewRegistry()
	provider := extension.Static(handlers)

	g.hub, err = hub.New(hub.Deps{
		Executor:  g.exec,
		Router:    g.router,
		Component: cfg.Hub.ServiceComponent,
	})
	if err != nil {
		return g, fmt.Errorf("create hub: %w", err)
	}
	g.lifecycle, err = lifecycle.New(lifecycle.Deps{
		Executor:   g.exec,
		Hub:        g.hub,
		Roots:      registry,
		Handlers:   provider,
		HubTimeout: cfg.Hub.Timeout,
	})
	if err != nil {
		return g, fmt.Errorf("create lifecycle coordinator: %w", err)
	}
	g.removal, err = removal.New(removal.Deps{
		Executor:  g.exec,
		Sender:    g.router,
		Roots:     registry,
		Handlers:  provider,
		Confirmer: g.confirmer,
		Component: cfg.Hub.ManagerComponent,
		Service:   cfg.Hub.ServiceComponent,
	})
	if err != nil {
		return g, fmt.Errorf("create root manager: %w", err)
	}
	unregister, err := g.router.Register(cfg.Hub.ManagerComponent, g.removal)
	if err != nil {
		return g, fmt.Errorf("register root manager: %w", err)
	}
	g.release = append(g.release, unregister)
	return g, nil
}
