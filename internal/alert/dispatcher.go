// Package alert sends best-effort notifications to the operator alert
// channel. Nothing in this package ever fails its caller.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"

	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/domain"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/ports"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/telemetry"
)

const DefaultTimeout = 5 * time.Second

// Outcomes reported to an OutcomeObserver.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

type Config struct {
	URL         string
	APIKey      string
	ServiceName string
	Timeout     time.Duration
}

// Configured reports whether alerts can be sent.
func (c Config) Configured() bool {
	return c.URL != "" && c.APIKey != ""
}

// OutcomeObserver is notified once per alert.
type OutcomeObserver interface {
	AlertCompleted(outcome string)
}

// Dispatcher posts alerts with a single bounded attempt.
type Dispatcher struct {
	cfg      Config
	client   *http.Client
	logger   *slog.Logger
	observer OutcomeObserver
	now      func() time.Time
}

type Option func(*Dispatcher)

func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithOutcomeObserver(o OutcomeObserver) Option {
	return func(d *Dispatcher) { d.observer = o }
}

func New(cfg Config, opts ...Option) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	d := &Dispatcher{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.client == nil {
		d.client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return d
}

// Configured reports whether the dispatcher has somewhere to send alerts.
func (d *Dispatcher) Configured() bool {
	return d.cfg.Configured()
}

// Notify sends alert. Errors are logged and swallowed.
func (d *Dispatcher) Notify(ctx context.Context, alert domain.Alert) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("alert dispatch panicked", slog.Any("panic", r))
			d.observe(OutcomeFailed)
		}
	}()

	if !d.cfg.Configured() {
		d.logger.Warn("alert skipped: alert channel not configured", slog.String("text", alert.Text))
		d.observe(OutcomeSkipped)
		return
	}

	if alert.Timestamp == "" {
		alert.Timestamp = d.now().UTC().Format(time.RFC3339)
	}
	if alert.Priority == "" {
		alert.Priority = domain.PriorityMedium
	}
	alert.Tags = withTag(alert.Tags, d.cfg.ServiceName)

	if err := d.send(ctx, alert); err != nil {
		d.logger.Error("failed to send alert",
			slog.String("error", err.Error()),
			slog.String("text", alert.Text),
		)
		d.observe(OutcomeFailed)
		return
	}

	d.logger.Info("alert sent", slog.String("priority", string(alert.Priority)))
	d.observe(OutcomeSent)
}

// NotifyError renders err into a high-priority incident alert.
func (d *Dispatcher) NotifyError(ctx context.Context, err error, actx ports.AlertContext) {
	if err == nil {
		return
	}

	kind := actx.Tag
	if kind == "" {
		kind = string(domain.KindOf(err))
	}

	tags := []string{"error", "incident", d.cfg.ServiceName, kind}
	if actx.OperationID != "" {
		tags = append(tags, "operation:"+actx.OperationID)
	}

	where := d.cfg.ServiceName
	if actx.Endpoint != "" {
		where += " at " + actx.Endpoint
	}

	var debug strings.Builder
	fmt.Fprintf(&debug, "Error type: %s", kind)
	if actx.Endpoint != "" {
		fmt.Fprintf(&debug, "\nEndpoint: %s", actx.Endpoint)
	}
	if actx.OperationID != "" {
		fmt.Fprintf(&debug, "\nOperation ID: %s", actx.OperationID)
	}

	d.Notify(ctx, domain.Alert{
		Text:      fmt.Sprintf("Error in %s: %s", where, err.Error()),
		Priority:  domain.PriorityHigh,
		Tags:      tags,
		DebugLogs: debug.String(),
	})
}

func (d *Dispatcher) send(ctx context.Context, alert domain.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	// Alerts raised while the caller is being torn down must still go out.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.Timeout)
	defer cancel()

	ctx, span := telemetry.Tracer().Start(ctx, "alert.notify")
	defer span.End()
	err = d.post(ctx, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "alert failed")
	}
	return err
}

func (d *Dispatcher) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.cfg.APIKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert channel returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) observe(outcome string) {
	if d.observer != nil {
		d.observer.AlertCompleted(outcome)
	}
}

func withTag(tags []string, tag string) []string {
	if tag == "" {
		return tags
	}
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}

var _ ports.Notifier = (*Dispatcher)(nil)
