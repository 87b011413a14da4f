// Package app composes the item source, the stream endpoints, the startup
// caller and the HTTP server from one SystemCfg.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashpect/itemstream/pkg/caller"
	"github.com/ashpect/itemstream/pkg/client"
	"github.com/ashpect/itemstream/pkg/config"
	"github.com/ashpect/itemstream/pkg/item"
	"github.com/ashpect/itemstream/pkg/metrics"
	"github.com/ashpect/itemstream/pkg/server"
	"github.com/ashpect/itemstream/pkg/stream"
	"github.com/ashpect/itemstream/pkg/tracing"
)

const ServiceName = "itemstream"

// Version is overridden at link time with -ldflags "-X".
var Version = "dev"

type App struct {
	cfg     *config.SystemCfg
	logger  *slog.Logger
	server  *server.Server
	caller  *caller.Caller
	closers []func()
}

// New wires every component. Nothing is started until Run.
func New(cfg *config.SystemCfg, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	var reg *metrics.Registry
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		m = reg.Metrics
	}

	source := item.NewSource(
		item.WithCount(cfg.Source.Count),
		item.WithInterval(cfg.Source.Interval),
	)
	streams := stream.New(source,
		stream.WithLogger(logger.With(slog.String("component", "stream"))),
		stream.WithMetrics(m),
	)

	opts := []server.Option{
		server.WithLogger(logger.With(slog.String("component", "server"))),
		server.WithReadHeaderTimeout(cfg.ReadHeaderTimeout),
		server.WithRoutes(streams),
	}
	if reg != nil {
		opts = append(opts, server.WithHandler("GET "+cfg.Metrics.Path, reg.Handler()))
	}

	if cfg.Caller.Enabled {
		callerOpts := []caller.Option{
			caller.WithClient(client.FromConfig(cfg.Caller, ServiceName+"/"+Version)),
			caller.WithLogger(logger.With(slog.String("component", "caller"))),
			caller.WithMetrics(m),
		}
		if cfg.Cache.Enabled {
			rc, err := caller.NewResponseCache(cfg.Cache)
			if err != nil {
				return nil, fmt.Errorf("response cache: %w", err)
			}
			a.closers = append(a.closers, rc.Close)
			callerOpts = append(callerOpts, caller.WithCache(rc))
		}
		a.caller = caller.New(cfg.Caller, cfg.Web, callerOpts...)
		opts = append(opts, server.WithRoutes(a.caller))
	}

	a.server = server.New(cfg.ListenAddr, opts...)
	return a, nil
}

// Addr reports the bound listen address once Run is serving.
func (a *App) Addr() string {
	return a.server.Addr()
}

// Run starts tracing and the startup caller, then serves until ctx is done.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	shutdown, err := tracing.Setup(a.cfg.Tracing, ServiceName, Version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			a.logger.Warn("tracing shutdown", slog.Any("error", err))
		}
	}()

	a.logger.Info("starting",
		slog.String("version", Version),
		slog.String("listen", a.cfg.ListenAddr),
		slog.Int("count", a.cfg.Source.Count),
		slog.Duration("interval", a.cfg.Source.Interval),
		slog.Bool("caller", a.caller != nil),
	)

	// the startup call runs on its own; readiness doesn't wait for it
	if a.caller != nil {
		a.caller.Start(ctx)
	}
	return a.server.ListenAndServe(ctx)
}

func (a *App) close() {
	for _, c := range a.closers {
		c()
	}
}

// Run is New followed by Run.
func Run(ctx context.Context, cfg *config.SystemCfg, logger *slog.Logger) error {
	a, err := New(cfg, logger)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
