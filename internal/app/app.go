package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"automated-kingdom/server/internal/config"
	servernet "automated-kingdom/server/internal/net"
	"automated-kingdom/server/internal/observability"
	"automated-kingdom/server/internal/persistence"
	"automated-kingdom/server/internal/session"
	"automated-kingdom/server/internal/sim"
	"automated-kingdom/server/internal/telemetry"
	"automated-kingdom/server/logging"
	loggingSinks "automated-kingdom/server/logging/sinks"
)

type Options struct {
	ConfigPath string
	Output     io.Writer
}

// Server holds the assembled components of a running process.
type Server struct {
	Config   config.Config
	Logger   *logrus.Logger
	Router   *logging.Router
	Metrics  *logging.Metrics
	Store    persistence.Store
	Registry *session.Registry
	Handler  http.Handler
}

// Build loads configuration and wires every component without listening.
func Build(opts Options) (*Server, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	return BuildWithConfig(cfg, opts.Output)
}

// BuildWithConfig wires the components described by cfg.
func BuildWithConfig(cfg config.Config, out io.Writer) (*Server, error) {
	if out == nil {
		out = os.Stdout
	}
	logger := telemetry.NewLogrus(out, cfg.Logging.Level, cfg.Logging.JSONFormat)
	telemetryLogger := telemetry.WrapLogger(logger)

	routerCfg := cfg.Router()
	if err := routerCfg.Validate(); err != nil {
		return nil, err
	}
	sinks, err := buildSinks(routerCfg, out)
	if err != nil {
		return nil, fmt.Errorf("failed to construct logging sinks: %w", err)
	}
	router := logging.NewRouter(logging.SystemClock{}, routerCfg, logger, sinks)

	store, err := persistence.Open(cfg.Persistence.DSN, telemetryLogger)
	if err != nil {
		_ = router.Close(context.Background())
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	metrics := logging.NewMetrics()
	router.AttachMetrics(metrics)
	registry := session.NewRegistry(cfg.Session(), sim.Deps{
		Logger:    telemetryLogger,
		Metrics:   telemetry.WrapMetrics(metrics),
		Publisher: router,
		Clock:     logging.SystemClock{},
	})

	handler := servernet.NewHTTPHandler(registry, servernet.HTTPHandlerConfig{
		Logger: telemetryLogger,
		Store:  store,
	})

	return &Server{
		Config:   cfg,
		Logger:   logger,
		Router:   router,
		Metrics:  metrics,
		Store:    store,
		Registry: registry,
		Handler:  observability.Wrap(handler, cfg.Observability(), metrics),
	}, nil
}

func buildSinks(cfg logging.Config, out io.Writer) ([]logging.NamedSink, error) {
	var sinks []logging.NamedSink
	if cfg.HasSink(logging.SinkConsole) {
		sinks = append(sinks, logging.NamedSink{Name: logging.SinkConsole, Sink: loggingSinks.NewConsoleSink(out, cfg.Console)})
	}
	if cfg.HasSink(logging.SinkJSON) {
		if cfg.JSON.FilePath == "" {
			sinks = append(sinks, logging.NamedSink{Name: logging.SinkJSON, Sink: loggingSinks.NewJSON(out, cfg.JSON.FlushInterval)})
		} else {
			sink, err := loggingSinks.OpenJSONFile(cfg.JSON.FilePath, cfg.JSON.FlushInterval)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, logging.NamedSink{Name: logging.SinkJSON, Sink: sink})
		}
	}
	if cfg.HasSink(logging.SinkMemory) {
		sinks = append(sinks, logging.NamedSink{Name: logging.SinkMemory, Sink: loggingSinks.NewBoundedMemorySink(cfg.Memory.Capacity)})
	}
	return sinks, nil
}

// Close stops every session and releases the store and router.
func (s *Server) Close(ctx context.Context) error {
	s.Registry.Shutdown()
	var errs []error
	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close snapshot store: %w", err))
	}
	if err := s.Router.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close logging router: %w", err))
	}
	return errors.Join(errs...)
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, opts Options) error {
	server, err := Build(opts)
	if err != nil {
		return err
	}
	cfg := server.Config
	log := server.Logger

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: server.Handler}
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":     srv.Addr,
			"tickRate": cfg.Server.TickRate,
			"store":    cfg.Persistence.DSN,
		}).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http shutdown")
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server failed: %w", err)
		}
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := server.Close(closeCtx); err != nil {
		log.WithError(err).Warn("shutdown")
	}
	return serveErr
}
