package runtime

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/ports"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/pkg/config"
)

// Option is a functional option for configuring a Service.
type Option func(*Service) error

// WithConfig uses an already loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) error {
		if cfg == nil {
			return errors.New("config cannot be nil")
		}
		s.cfg = cfg
		return nil
	}
}

// WithConfigFile loads configuration from path, the .env file and the
// environment.
func WithConfigFile(path string) Option {
	return func(s *Service) error {
		cfg, err := config.Load(config.LoadOptions{ConfigFile: path})
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		s.cfg = cfg
		return nil
	}
}

// WithLogger overrides the logger built from the log config.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}

// WithLogOutput redirects the configured logger.
func WithLogOutput(w io.Writer) Option {
	return func(s *Service) error {
		s.logOutput = w
		return nil
	}
}

// WithTraceOutput redirects exported spans when tracing is enabled.
func WithTraceOutput(w io.Writer) Option {
	return func(s *Service) error {
		s.traceOutput = w
		return nil
	}
}

// WithMetricsOutput redirects exported metrics when metrics are enabled.
func WithMetricsOutput(w io.Writer) Option {
	return func(s *Service) error {
		s.metricsOutput = w
		return nil
	}
}

// WithVersion overrides service.version, typically with the build version.
// An empty version keeps the configured one.
func WithVersion(version string) Option {
	return func(s *Service) error {
		s.version = version
		return nil
	}
}

// WithProcessor registers an additional processor alongside the built-ins.
// Registering a name twice is an error.
func WithProcessor(p ports.Processor) Option {
	return func(s *Service) error {
		if p == nil || p.Name() == "" {
			return errors.New("processor must have a name")
		}
		for _, existing := range s.processors {
			if existing.Name() == p.Name() {
				return fmt.Errorf("processor %q registered twice", p.Name())
			}
		}
		s.processors = append(s.processors, p)
		return nil
	}
}

// WithWebhookClient replaces the HTTP client used for result delivery.
func WithWebhookClient(c *http.Client) Option {
	return func(s *Service) error {
		s.webhookClient = c
		return nil
	}
}

// WithAlertClient replaces the HTTP client used for operator alerts.
func WithAlertClient(c *http.Client) Option {
	return func(s *Service) error {
		s.alertClient = c
		return nil
	}
}

// WithListener serves on ln instead of listening on server.port.
func WithListener(ln net.Listener) Option {
	return func(s *Service) error {
		s.listener = ln
		return nil
	}
}
