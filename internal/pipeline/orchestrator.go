package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/domain"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/ports"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/telemetry"
)

// DefaultExecutionTimeout bounds a single execution.
const DefaultExecutionTimeout = 60 * time.Second

// ErrShuttingDown is returned by Accept once Shutdown has begun.
var ErrShuttingDown = domain.ErrUnavailable("service is shutting down")

// errFinalized is returned by Emit after the final delivery has started.
var errFinalized = errors.New("operation already finalized")

type endpointKey struct{}

// WithEndpoint records the inbound endpoint for alert context.
func WithEndpoint(ctx context.Context, endpoint string) context.Context {
	return context.WithValue(ctx, endpointKey{}, endpoint)
}

func endpointFrom(ctx context.Context) string {
	if v, ok := ctx.Value(endpointKey{}).(string); ok {
		return v
	}
	return ""
}

// Orchestrator accepts step calls and runs each to completion on its own
// goroutine: execute, then deliver, then alert on failure.
type Orchestrator struct {
	executor  ports.Executor
	deliverer ports.Deliverer
	notifier  ports.Notifier
	observer  ports.Observer
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc

	// mu orders wg.Add in Accept against wg.Wait in Shutdown.
	mu       sync.RWMutex
	closing  bool
	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithExecutionTimeout bounds each execution. Non-positive values keep the
// default.
func WithExecutionTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithObserver adds a lifecycle observer. It may be given more than once.
func WithObserver(obs ports.Observer) Option {
	return func(o *Orchestrator) {
		if obs == nil {
			return
		}
		if existing, ok := o.observer.(observers); ok {
			o.observer = append(existing, obs)
			return
		}
		o.observer = observers{obs}
	}
}

// New creates an orchestrator.
func New(executor ports.Executor, deliverer ports.Deliverer, notifier ports.Notifier, opts ...Option) *Orchestrator {
	baseCtx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		executor:  executor,
		deliverer: deliverer,
		notifier:  notifier,
		observer:  observers(nil),
		logger:    slog.Default(),
		timeout:   DefaultExecutionTimeout,
		now:       time.Now,
		baseCtx:   baseCtx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// InFlight returns the number of operations not yet finished.
func (o *Orchestrator) InFlight() int64 {
	return o.inFlight.Load()
}

// Accept validates call, records a new operation and starts it in the
// background. It performs no network I/O.
func (o *Orchestrator) Accept(ctx context.Context, call *domain.StepCall) (uuid.UUID, error) {
	if err := call.Validate(); err != nil {
		return uuid.Nil, err
	}

	o.mu.RLock()
	if o.closing {
		o.mu.RUnlock()
		return uuid.Nil, ErrShuttingDown
	}
	o.wg.Add(1)
	o.mu.RUnlock()

	op := domain.NewOperation(call, o.now())
	o.inFlight.Add(1)
	o.observer.OperationAccepted(op)

	endpoint := endpointFrom(ctx)
	link := trace.LinkFromContext(ctx)

	o.logger.Info("operation accepted",
		slog.String("operation_id", op.ID.String()),
		slog.String("step_id", op.StepID),
		slog.String("endpoint", endpoint),
	)

	go o.run(op, endpoint, link)
	return op.ID, nil
}

func (o *Orchestrator) run(op *domain.Operation, endpoint string, link trace.Link) {
	defer o.wg.Done()
	defer o.inFlight.Add(-1)

	logger := o.logger.With(
		slog.String("operation_id", op.ID.String()),
		slog.String("step_id", op.StepID),
	)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("operation task panicked", slog.Any("panic", r))
		}
	}()

	ctx, span := telemetry.Tracer().Start(o.baseCtx, "operation.run",
		trace.WithLinks(link),
		trace.WithAttributes(
			attribute.String("operation_id", op.ID.String()),
			attribute.String("step_id", op.StepID),
		))
	defer span.End()

	actx := ports.AlertContext{OperationID: op.ID.String(), Endpoint: endpoint}

	o.transition(op, domain.StateRunning, logger)

	em := &emitter{o: o, op: op, logger: logger, actx: actx}
	outputs, err := o.execute(ctx, op, em.emit)
	em.finalize()

	from := op.State
	if err != nil {
		_ = op.Fail(err, o.now())
		o.observer.OperationTransitioned(op, from)
		span.SetStatus(codes.Error, op.Result.Error.Error())
		logger.Error("operation failed",
			slog.String("error_kind", string(op.Result.Error.Kind)),
			slog.String("error", op.Result.Error.Error()),
			slog.Duration("duration", op.Duration()),
		)
	} else {
		_ = op.Succeed(outputs, o.now())
		o.observer.OperationTransitioned(op, from)
		logger.Info("operation succeeded",
			slog.Int("outputs", len(outputs)),
			slog.Duration("duration", op.Duration()),
		)
	}

	// The final payload goes out before any alert so a slow or faulty alert
	// channel cannot hold it back. It is sent even for operations abandoned
	// at shutdown; the dispatcher's retry budget bounds it.
	derr := o.deliverer.Deliver(context.WithoutCancel(ctx), op.Webhook, op.ID, domain.NewFinalStepResult(op))
	o.observer.DeliveryCompleted(op, ports.DeliveryFinal, derr)
	if derr != nil {
		span.RecordError(derr)
		logger.Error("final result delivery failed", slog.String("error", derr.Error()))
	} else {
		logger.Debug("final result delivered", slog.String("state", string(op.State)))
	}

	if op.State == domain.StateFailed {
		o.safeNotify(ctx, op.Result.Error, actx, logger)
	}
	if derr != nil {
		o.safeNotify(ctx, deliveryError(derr), withTag(actx, string(domain.ErrorKindDelivery)), logger)
	}
}

// safeNotify sends an alert. A panicking notifier is logged and contained.
func (o *Orchestrator) safeNotify(ctx context.Context, err error, actx ports.AlertContext, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("alert notifier panicked", slog.Any("panic", r))
		}
	}()
	o.notifier.NotifyError(ctx, err, actx)
}

// deliveryError converts an exhausted delivery into a delivery-kind error,
// preferring the dispatcher's own conversion.
func deliveryError(err error) *domain.Error {
	var de interface{ DomainError() *domain.Error }
	if errors.As(err, &de) {
		return de.DomainError()
	}
	return domain.NewError(domain.ErrorKindDelivery, err.Error()).WithCause(err)
}

func withTag(actx ports.AlertContext, tag string) ports.AlertContext {
	actx.Tag = tag
	return actx
}

func (o *Orchestrator) transition(op *domain.Operation, to domain.State, logger *slog.Logger) {
	from := op.State
	if err := op.Transition(to, o.now()); err != nil {
		logger.Error("invalid state transition", slog.String("error", err.Error()))
		return
	}
	o.observer.OperationTransitioned(op, from)
	logger.Debug("operation state changed",
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
}

type execResult struct {
	outputs []domain.Output
	err     error
}

// execute runs the executor under the execution timeout. A processor that
// ignores its context is abandoned when the deadline passes.
func (o *Orchestrator) execute(ctx context.Context, op *domain.Operation, emit ports.EmitFunc) ([]domain.Output, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	exec := &ports.Execution{
		OperationID: op.ID,
		StepID:      op.StepID,
		Input:       op.Input,
		Variables:   op.Variables,
		Emit:        emit,
	}

	done := make(chan execResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- execResult{err: domain.ErrInternal(fmt.Sprintf("executor panicked: %v", r))}
			}
		}()
		outputs, err := o.executor.Execute(ctx, exec)
		done <- execResult{outputs: outputs, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() != nil {
			return nil, contextError(ctx, o.timeout)
		}
		return r.outputs, r.err
	case <-ctx.Done():
		return nil, contextError(ctx, o.timeout)
	}
}

func contextError(ctx context.Context, timeout time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ErrTimeout(fmt.Sprintf("execution exceeded %s", timeout)).WithCause(ctx.Err())
	}
	return domain.ErrUnavailable("operation abandoned during shutdown").WithCause(ctx.Err())
}

// emitter delivers intermediate results. finalize blocks new emits and
// waits for in-flight ones, so every intermediate delivery completes before
// the final one starts. No lock is held during delivery.
type emitter struct {
	o      *Orchestrator
	op     *domain.Operation
	logger *slog.Logger
	actx   ports.AlertContext

	mu        sync.Mutex
	finalized bool
	pending   sync.WaitGroup
}

func (e *emitter) emit(ctx context.Context, data map[string]any) error {
	e.mu.Lock()
	if e.finalized {
		e.mu.Unlock()
		return errFinalized
	}
	e.pending.Add(1)
	e.mu.Unlock()
	defer e.pending.Done()

	if err := ctx.Err(); err != nil {
		return err
	}

	err := e.o.deliverer.Deliver(ctx, e.op.Webhook, e.op.ID, domain.NewStepResult(e.op, data))
	e.o.observer.DeliveryCompleted(e.op, ports.DeliveryIntermediate, err)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Error("intermediate result delivery failed", slog.String("error", err.Error()))
		e.o.safeNotify(ctx, deliveryError(err), withTag(e.actx, string(domain.ErrorKindDelivery)), e.logger)
		return nil
	}
	e.logger.Debug("intermediate result delivered")
	return nil
}

// finalize blocks new emits and waits for in-flight ones.
func (e *emitter) finalize() {
	e.mu.Lock()
	e.finalized = true
	e.mu.Unlock()
	e.pending.Wait()
}

// Shutdown stops accepting new operations and waits for in-flight ones
// until ctx is done. Operations still running after that are abandoned by
// canceling their context.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closing = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.cancel()
		o.logger.Info("all operations drained")
		return nil
	case <-ctx.Done():
		remaining := o.inFlight.Load()
		o.cancel()
		o.logger.Warn("shutdown grace expired, abandoning operations", slog.Int64("in_flight", remaining))
		return fmt.Errorf("abandoned %d operations: %w", remaining, ctx.Err())
	}
}

// observers fans notifications out to each observer in order.
type observers []ports.Observer

func (obs observers) OperationAccepted(op *domain.Operation) {
	for _, o := range obs {
		o.OperationAccepted(op)
	}
}

func (obs observers) OperationTransitioned(op *domain.Operation, from domain.State) {
	for _, o := range obs {
		o.OperationTransitioned(op, from)
	}
}

func (obs observers) DeliveryCompleted(op *domain.Operation, kind ports.DeliveryKind, err error) {
	for _, o := range obs {
		o.DeliveryCompleted(op, kind, err)
	}
}
