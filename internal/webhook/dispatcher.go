// Package webhook delivers operation results to caller-supplied webhook
// URLs with bounded retries.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/domain"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/ports"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/pkg/safehttp"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/telemetry"
)

const (
	DefaultAttemptTimeout = 5 * time.Second
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMultiplier     = 2.0
	DefaultMaxBackoff     = 5 * time.Second
	DefaultRetryBudget    = 30 * time.Second

	// maxErrorBody bounds how much of a failed response is kept for logs.
	maxErrorBody = 512
)

// Config configures a Dispatcher. Zero values take the defaults.
type Config struct {
	// AuthToken is sent as a bearer token unless the target carries its own.
	AuthToken            string
	UserAgent            string
	AttemptTimeout       time.Duration
	MaxAttempts          int
	InitialBackoff       time.Duration
	Multiplier           float64
	MaxBackoff           time.Duration
	RetryBudget          time.Duration
	BlockPrivateNetworks bool
}

func (c *Config) applyDefaults() {
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.Multiplier < 1 {
		c.Multiplier = DefaultMultiplier
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.RetryBudget <= 0 {
		c.RetryBudget = DefaultRetryBudget
	}
}

// AttemptObserver is notified after every HTTP attempt.
type AttemptObserver interface {
	AttemptCompleted(statusCode int, err error)
}

// DeliveryError is returned once every attempt has failed.
type DeliveryError struct {
	Attempts   int
	LastStatus int // 0 when no response was received
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.LastStatus != 0 {
		return fmt.Sprintf("webhook delivery failed after %d attempts (last status %d): %v", e.Attempts, e.LastStatus, e.Err)
	}
	return fmt.Sprintf("webhook delivery failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// DomainError converts the failure into a delivery-kind domain error.
func (e *DeliveryError) DomainError() *domain.Error {
	return domain.NewError(domain.ErrorKindDelivery, e.Error()).WithCause(e)
}

// Dispatcher posts JSON payloads to webhook targets.
type Dispatcher struct {
	cfg      Config
	client   *http.Client
	backoff  Backoff
	logger   *slog.Logger
	observer AttemptObserver
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithAttemptObserver(o AttemptObserver) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// New creates a dispatcher.
func New(cfg Config, opts ...Option) *Dispatcher {
	cfg.applyDefaults()

	d := &Dispatcher{
		cfg: cfg,
		backoff: Backoff{
			Initial:    cfg.InitialBackoff,
			Multiplier: cfg.Multiplier,
			Max:        cfg.MaxBackoff,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.client == nil {
		d.client = NewHTTPClient(cfg.BlockPrivateNetworks)
	}
	return d
}

// NewHTTPClient returns a traced client, optionally refusing private
// network targets.
func NewHTTPClient(blockPrivate bool) *http.Client {
	base := http.DefaultTransport
	if blockPrivate {
		base = safehttp.NewTransport(0)
	}
	return &http.Client{Transport: otelhttp.NewTransport(base)}
}

// Deliver posts payload to target, retrying failed attempts with
// exponential backoff until MaxAttempts or the retry budget runs out.
func (d *Dispatcher) Deliver(ctx context.Context, target domain.WebhookTarget, operationID uuid.UUID, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &DeliveryError{Err: fmt.Errorf("marshal payload: %w", err)}
	}

	ctx, span := telemetry.Tracer().Start(ctx, "webhook.deliver",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("operation.id", operationID.String())),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, d.cfg.RetryBudget)
	defer cancel()

	var (
		lastErr    error
		lastStatus int
		attempts   int
	)

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		attempts = attempt
		status, err := d.doRequest(ctx, target, operationID, body)
		if d.observer != nil {
			d.observer.AttemptCompleted(status, err)
		}
		if err == nil {
			d.logger.Debug("webhook delivered",
				slog.String("operation_id", operationID.String()),
				slog.Int("attempt", attempt),
				slog.Int("status_code", status),
			)
			span.SetAttributes(attribute.Int("webhook.attempts", attempt))
			return nil
		}
		lastErr, lastStatus = err, status

		d.logger.Warn("webhook attempt failed",
			slog.String("operation_id", operationID.String()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", d.cfg.MaxAttempts),
			slog.Int("status_code", status),
			slog.String("error", err.Error()),
		)

		if attempt == d.cfg.MaxAttempts {
			break
		}
		if !d.wait(ctx, d.backoff.NextDelay(attempt)) {
			break
		}
	}

	derr := &DeliveryError{Attempts: attempts, LastStatus: lastStatus, Err: lastErr}
	span.SetAttributes(attribute.Int("webhook.attempts", attempts))
	span.RecordError(derr)
	span.SetStatus(codes.Error, "delivery failed")
	return derr
}

// wait sleeps for delay unless ctx ends first or the delay would overrun
// the retry budget.
func (d *Dispatcher) wait(ctx context.Context, delay time.Duration) bool {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
		return false
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (d *Dispatcher) doRequest(ctx context.Context, target domain.WebhookTarget, operationID uuid.UUID, body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Operation-ID", operationID.String())
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}
	token := target.AuthToken
	if token == "" {
		token = d.cfg.AuthToken
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, fmt.Errorf("webhook request timed out: %w", err)
		}
		return 0, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

var _ ports.Deliverer = (*Dispatcher)(nil)
