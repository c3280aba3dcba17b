// Package runtime assembles the step service from configuration and runs
// it until its context is cancelled.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/alert"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/api/operations"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/auth"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/ports"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/engine"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/logging"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/pipeline"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/pkg/config"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/registration"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/server"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/telemetry"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/webhook"
)

// Service is a fully wired step service.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger

	logOutput     io.Writer
	traceOutput   io.Writer
	metricsOutput io.Writer
	version       string
	processors    []ports.Processor
	webhookClient *http.Client
	alertClient   *http.Client
	listener      net.Listener

	registry     *engine.Registry
	metrics      *telemetry.Metrics
	orchestrator *pipeline.Orchestrator
	server       *server.Server
	startedAt    time.Time

	tracerShutdown func(context.Context) error
	meterShutdown  func(context.Context) error
	shutdownOnce   sync.Once
	shutdownErr    error
}

// New builds a Service. Without WithConfig or WithConfigFile the default
// config sources are read. The configuration is validated before anything
// is constructed.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		logOutput:     os.Stdout,
		traceOutput:   os.Stderr,
		metricsOutput: os.Stderr,
		startedAt:     time.Now(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.cfg == nil {
		cfg, err := config.Load(config.LoadOptions{})
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		s.cfg = cfg
	}
	if s.version != "" {
		s.cfg.Service.Version = s.version
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg := s.cfg

	if s.logger == nil {
		level := cfg.Log.Level
		if cfg.Service.Debug {
			level = "DEBUG"
		}
		s.logger = logging.New(s.logOutput, level, cfg.Log.Format, cfg.Service.Name, cfg.Service.Version)
	}

	if cfg.Telemetry.Tracing {
		shutdown, err := telemetry.InitTracer(s.traceOutput, cfg.Service.Name, cfg.Service.Version, s.logger)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		s.tracerShutdown = shutdown
	}

	var meter metric.Meter
	if cfg.Telemetry.Metrics {
		m, shutdown, err := telemetry.InitMeter(s.metricsOutput, cfg.Service.Name, cfg.Service.Version, cfg.Telemetry.MetricsInterval, s.logger)
		if err != nil {
			return nil, fmt.Errorf("init meter: %w", err)
		}
		meter, s.meterShutdown = m, shutdown
	}

	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	s.metrics = metrics

	s.registry = registration.NewRegistry()
	for _, p := range s.processors {
		if _, exists := s.registry.Lookup(p.Name()); exists {
			return nil, fmt.Errorf("processor %q conflicts with a built-in", p.Name())
		}
		s.registry.Register(p)
	}

	webhookOpts := []webhook.Option{
		webhook.WithLogger(s.logger),
		webhook.WithAttemptObserver(metrics),
	}
	if s.webhookClient != nil {
		webhookOpts = append(webhookOpts, webhook.WithHTTPClient(s.webhookClient))
	}
	deliverer := webhook.New(webhook.Config{
		AuthToken:            cfg.Webhook.AuthToken,
		UserAgent:            cfg.Service.Name + "/" + cfg.Service.Version,
		AttemptTimeout:       cfg.Webhook.AttemptTimeout,
		MaxAttempts:          cfg.Webhook.MaxAttempts,
		InitialBackoff:       cfg.Webhook.InitialBackoff,
		Multiplier:           cfg.Webhook.Multiplier,
		MaxBackoff:           cfg.Webhook.MaxBackoff,
		RetryBudget:          cfg.Webhook.RetryBudget,
		BlockPrivateNetworks: cfg.Webhook.BlockPrivateNetworks,
	}, webhookOpts...)

	alertOpts := []alert.Option{
		alert.WithLogger(s.logger),
		alert.WithOutcomeObserver(metrics),
	}
	if s.alertClient != nil {
		alertOpts = append(alertOpts, alert.WithHTTPClient(s.alertClient))
	}
	notifier := alert.New(alert.Config{
		URL:         cfg.Alert.URL,
		APIKey:      cfg.Alert.APIKey,
		ServiceName: cfg.Service.Name,
		Timeout:     cfg.Alert.Timeout,
	}, alertOpts...)
	if !notifier.Configured() {
		s.logger.Warn("alert channel not configured; operator alerts will be skipped")
	}

	s.orchestrator = pipeline.New(
		engine.New(s.registry, s.logger),
		deliverer,
		notifier,
		pipeline.WithLogger(s.logger),
		pipeline.WithExecutionTimeout(cfg.Execution.Timeout),
		pipeline.WithObserver(metrics),
	)

	s.server = server.New(server.Options{
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout,
		ServiceName:    cfg.Service.Name,
		Gate:           auth.NewGate(cfg.Auth.Token, cfg.Auth.PublicPaths, s.logger),
		Notifier:       notifier,
	}, s.logger)
	operations.NewHandler(s.orchestrator, s.logger).RegisterRoutes(s.server.Router)
	operations.NewHealth(cfg.Service.Name, cfg.Service.Version, s.startedAt).RegisterRoutes(s.server.Router)

	s.logger.Info("service initialized",
		slog.Int("port", cfg.Server.Port),
		slog.Any("operations", s.registry.Names()),
		slog.Bool("tracing", cfg.Telemetry.Tracing),
		slog.Bool("metrics", cfg.Telemetry.Metrics),
	)
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.server.Router
}

// Config returns the validated configuration.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Logger returns the service logger.
func (s *Service) Logger() *slog.Logger {
	return s.logger
}

// Operations lists the registered operation names.
func (s *Service) Operations() []string {
	return s.registry.Names()
}

// InFlight reports operations accepted but not yet finished.
func (s *Service) InFlight() int64 {
	return s.orchestrator.InFlight()
}

// Start serves HTTP and blocks until Shutdown is called.
func (s *Service) Start() error {
	if s.listener != nil {
		return s.server.Serve(s.listener)
	}
	return s.server.Start()
}

// Shutdown stops accepting operations and HTTP connections, waits for
// in-flight operations until ctx expires, then flushes telemetry. Later
// calls return the first result.
func (s *Service) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.logger.Info("shutting down", slog.Int64("in_flight", s.orchestrator.InFlight()))

		var g errgroup.Group
		g.Go(func() error { return s.orchestrator.Shutdown(ctx) })
		g.Go(func() error { return s.server.Shutdown(ctx) })
		err := g.Wait()

		if s.tracerShutdown != nil {
			if terr := s.tracerShutdown(context.WithoutCancel(ctx)); terr != nil {
				err = errors.Join(err, fmt.Errorf("shutdown tracer: %w", terr))
			}
		}
		if s.meterShutdown != nil {
			if merr := s.meterShutdown(context.WithoutCancel(ctx)); merr != nil {
				err = errors.Join(err, fmt.Errorf("shutdown meter: %w", merr))
			}
		}
		if err != nil {
			s.logger.Error("shutdown incomplete", slog.String("error", err.Error()))
		} else {
			s.logger.Info("shutdown complete")
		}
		s.shutdownErr = err
	})
	return s.shutdownErr
}

// Run serves until ctx is cancelled or the server fails, then shuts down
// within server.shutdown_grace.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	gctx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error {
		// A Shutdown from elsewhere ends Start cleanly; release the waiter.
		defer stop()
		return s.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Server.ShutdownGrace)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
