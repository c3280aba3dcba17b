package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle position of an operation.
type State string

const (
	StateAccepted  State = "accepted"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transitions can occur from s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// ErrInvalidTransition is returned when a transition would move an operation
// backwards or skip a state.
var ErrInvalidTransition = errors.New("invalid operation state transition")

// allowed lists the single legal predecessor of each non-initial state.
var allowed = map[State]State{
	StateRunning:   StateAccepted,
	StateSucceeded: StateRunning,
	StateFailed:    StateRunning,
}

// WebhookTarget is where results for an operation are delivered.
type WebhookTarget struct {
	URL string
	// AuthToken overrides the service-wide outbound credential when set.
	AuthToken string
}

// Output is one unit of result data.
type Output struct {
	Data map[string]any `json:"data"`
}

// Result is the terminal outcome of an operation. Error is nil on success.
type Result struct {
	Outputs []Output
	Error   *Error
}

// Succeeded reports whether the result carries success data.
func (r *Result) Succeeded() bool {
	return r != nil && r.Error == nil
}

// Operation tracks one accepted unit of work from acceptance to terminal
// delivery. It is owned by a single goroutine and carries no lock.
type Operation struct {
	ID          uuid.UUID
	StepID      string
	State       State
	Input       map[string]any
	Variables   map[string]any
	Webhook     WebhookTarget
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Result      *Result
}

// NewOperation creates an operation in the accepted state for a validated
// step call.
func NewOperation(call *StepCall, now time.Time) *Operation {
	vars := call.Variables
	if vars == nil {
		vars = map[string]any{}
	}
	input := call.Initial.Input
	if input == nil {
		input = map[string]any{}
	}
	return &Operation{
		ID:        uuid.New(),
		StepID:    call.Step.ID,
		State:     StateAccepted,
		Input:     input,
		Variables: vars,
		Webhook: WebhookTarget{
			URL:       call.Webhook.URL,
			AuthToken: call.Webhook.AuthToken,
		},
		CreatedAt: now,
	}
}

// Transition moves the operation forward. Terminal transitions must go
// through Succeed or Fail so that a result is always attached.
func (o *Operation) Transition(to State, now time.Time) error {
	from, ok := allowed[to]
	if !ok || o.State != from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.State, to)
	}
	if to.Terminal() && o.Result == nil {
		return fmt.Errorf("%w: %s requires a result", ErrInvalidTransition, to)
	}
	o.State = to
	switch {
	case to == StateRunning:
		o.StartedAt = &now
	case to.Terminal():
		o.CompletedAt = &now
	}
	return nil
}

// Succeed records outputs and moves the operation to succeeded.
func (o *Operation) Succeed(outputs []Output, now time.Time) error {
	if o.State != StateRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.State, StateSucceeded)
	}
	o.Result = &Result{Outputs: outputs}
	return o.Transition(StateSucceeded, now)
}

// Fail records the error and moves the operation to failed.
func (o *Operation) Fail(err error, now time.Time) error {
	if o.State != StateRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.State, StateFailed)
	}
	o.Result = &Result{Error: AsError(err)}
	return o.Transition(StateFailed, now)
}

// Duration returns the time from acceptance to completion, or zero while the
// operation is still in flight.
func (o *Operation) Duration() time.Duration {
	if o.CompletedAt == nil {
		return 0
	}
	return o.CompletedAt.Sub(o.CreatedAt)
}
