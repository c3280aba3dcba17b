// Package engine provides the pluggable processing engine.
//
// # Adding a New Operation
//
// Each operation family implements ports.Processor and is registered on a
// Registry under the name callers put in the input's "operation" field:
//
//	reg := engine.NewRegistry("uppercase")
//	reg.Register(myProcessor)
//
// The orchestrator only sees the Engine, so new operations never touch the
// pipeline or the dispatchers.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/domain"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/ports"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/telemetry"
)

// DiscriminatorField is the input field that selects a processor.
const DiscriminatorField = "operation"

// Registry maps operation names to processors.
type Registry struct {
	mu          sync.RWMutex
	processors  map[string]ports.Processor
	defaultName string
}

// NewRegistry creates an empty registry. defaultName is used when the input
// omits the discriminator or names an unregistered operation.
func NewRegistry(defaultName string) *Registry {
	return &Registry{
		processors:  make(map[string]ports.Processor),
		defaultName: defaultName,
	}
}

// Register adds a processor. Panics if the name is empty or already taken.
func (r *Registry) Register(p ports.Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if name == "" {
		panic("processor name cannot be empty")
	}
	if _, exists := r.processors[name]; exists {
		panic(fmt.Sprintf("processor %q already registered", name))
	}
	r.processors[name] = p
}

// Lookup returns the processor registered under name.
func (r *Registry) Lookup(name string) (ports.Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.processors[name]
	return p, ok
}

// Names returns all registered operation names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.processors))
	for name := range r.processors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve selects the processor for an input mapping. The second return
// value reports whether the default was substituted for an unknown name.
func (r *Registry) Resolve(input map[string]any) (ports.Processor, bool, error) {
	name, err := Params(input).String(DiscriminatorField, r.defaultName)
	if err != nil {
		return nil, false, err
	}
	if name == "" {
		name = r.defaultName
	}

	if p, ok := r.Lookup(name); ok {
		return p, false, nil
	}
	if p, ok := r.Lookup(r.defaultName); ok {
		return p, true, nil
	}
	return nil, false, domain.ErrValidation(fmt.Sprintf("unsupported operation %q", name)).WithField(DiscriminatorField)
}

// Engine executes operations through the registry. It converts processor
// panics and foreign errors into domain errors so a faulty processor never
// takes down the host.
type Engine struct {
	registry *Registry
	logger   *slog.Logger
}

// New creates an engine over registry.
func New(registry *Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{registry: registry, logger: logger}
}

// Execute implements ports.Executor.
func (e *Engine) Execute(ctx context.Context, exec *ports.Execution) (outputs []domain.Output, err error) {
	p, fallback, err := e.registry.Resolve(exec.Input)
	if err != nil {
		return nil, err
	}
	if fallback {
		e.logger.Warn("unknown operation, using default",
			slog.String("operation_id", exec.OperationID.String()),
			slog.String("default", p.Name()),
		)
	}

	ctx, span := telemetry.Tracer().Start(ctx, "engine.execute",
		trace.WithAttributes(
			attribute.String("operation", p.Name()),
			attribute.String("operation_id", exec.OperationID.String()),
		))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			outputs = nil
			err = domain.ErrInternal(fmt.Sprintf("processor %s panicked: %v", p.Name(), r))
			span.SetStatus(codes.Error, "panic")
		}
	}()

	outputs, err = p.Process(ctx, exec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, domain.AsError(err)
	}
	return outputs, nil
}

var _ ports.Executor = (*Engine)(nil)
