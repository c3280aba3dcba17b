// Package ports defines the core interfaces for the step service.
// This file contains the capabilities the pipeline orchestrator depends on.
package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/domain"
)

// EmitFunc delivers an intermediate result for the running operation.
type EmitFunc func(ctx context.Context, data map[string]any) error

// Execution is the data handed to a processor for one operation.
type Execution struct {
	OperationID uuid.UUID
	StepID      string
	// Input is the caller's open input mapping. Processors must not mutate it.
	Input map[string]any
	// Variables are passed through to every payload unmodified.
	Variables map[string]any
	// Emit is optional; processors that report multi-stage progress call it.
	// It is never nil when supplied by the orchestrator.
	Emit EmitFunc
}

// Processor executes the business logic of one operation family.
type Processor interface {
	// Name returns the operation name this processor is registered under.
	Name() string
	// Process runs the work. A returned error becomes the terminal failure.
	Process(ctx context.Context, exec *Execution) ([]domain.Output, error)
}

// Executor runs an execution through whichever processor its input selects.
type Executor interface {
	Execute(ctx context.Context, exec *Execution) ([]domain.Output, error)
}

// Deliverer posts a payload to a webhook target.
type Deliverer interface {
	Deliver(ctx context.Context, target domain.WebhookTarget, operationID uuid.UUID, payload any) error
}

// AlertContext describes where an error occurred for alert rendering.
type AlertContext struct {
	OperationID string
	Endpoint    string
	// Tag overrides the error-kind tag when set.
	Tag string
}

// Notifier sends best-effort operator alerts. Implementations never fail
// the caller.
type Notifier interface {
	Notify(ctx context.Context, alert domain.Alert)
	NotifyError(ctx context.Context, err error, actx AlertContext)
}

// DeliveryKind distinguishes intermediate from final deliveries.
type DeliveryKind string

const (
	DeliveryIntermediate DeliveryKind = "intermediate"
	DeliveryFinal        DeliveryKind = "final"
)

// Observer receives lifecycle notifications from the orchestrator.
// Implementations must be safe for concurrent use across operations.
type Observer interface {
	OperationAccepted(op *domain.Operation)
	OperationTransitioned(op *domain.Operation, from domain.State)
	DeliveryCompleted(op *domain.Operation, kind DeliveryKind, err error)
}
