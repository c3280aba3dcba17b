package domain

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StepCall is the inbound acceptance body. Unknown fields are ignored.
type StepCall struct {
	Step      StepRef         `json:"step"`
	Webhook   StepWebhook     `json:"webhook"`
	Previous  *PreviousResult `json:"previous,omitempty"`
	Initial   StepInitial     `json:"initial"`
	Variables map[string]any  `json:"variables,omitempty"`
}

// StepRef identifies the caller's step. The id is echoed back untouched.
type StepRef struct {
	ID string `json:"id"`
}

// StepWebhook is the caller-supplied delivery target.
type StepWebhook struct {
	URL       string `json:"url"`
	AuthToken string `json:"auth_token,omitempty"`
}

// PreviousResult carries the output of the caller's previous step.
type PreviousResult struct {
	Output map[string]any `json:"output"`
}

// StepInitial wraps the open input mapping.
type StepInitial struct {
	Input map[string]any `json:"input"`
}

// Validate checks the required sub-objects. All violations are collected
// into a single validation error.
func (c *StepCall) Validate() error {
	var details []string

	id := strings.TrimSpace(c.Step.ID)
	switch {
	case id == "":
		details = append(details, "step.id: field required")
	default:
		if _, err := uuid.Parse(id); err != nil {
			details = append(details, "step.id: must be a valid UUID")
		}
	}

	if c.Webhook.URL == "" {
		details = append(details, "webhook.url: field required")
	} else if u, err := url.Parse(c.Webhook.URL); err != nil || u.Host == "" ||
		(u.Scheme != "http" && u.Scheme != "https") {
		details = append(details, "webhook.url: must be an absolute http(s) URL")
	}

	if c.Initial.Input == nil {
		details = append(details, "initial.input: field required")
	}

	if len(details) == 0 {
		return nil
	}
	return ErrValidation("request body failed validation").WithDetails(details...)
}

// OperationRef wraps the operation identifier in result payloads.
type OperationRef struct {
	OperationID uuid.UUID `json:"operation_id"`
}

// StepResult is the intermediate result shape.
type StepResult struct {
	Step      StepRef        `json:"step"`
	Operation OperationRef   `json:"operation"`
	Variables map[string]any `json:"variables"`
	Outputs   []Output       `json:"outputs"`
}

// FinalStepResult is the terminal result shape, sent exactly once per
// operation.
type FinalStepResult struct {
	Step        StepRef        `json:"step"`
	Operation   OperationRef   `json:"operation"`
	Status      State          `json:"status"`
	Variables   map[string]any `json:"variables"`
	Outputs     []Output       `json:"outputs"`
	Error       *Error         `json:"error,omitempty"`
	CompletedAt time.Time      `json:"completed_at"`
}

// NewStepResult builds an intermediate payload for op.
func NewStepResult(op *Operation, data map[string]any) *StepResult {
	return &StepResult{
		Step:      StepRef{ID: op.StepID},
		Operation: OperationRef{OperationID: op.ID},
		Variables: op.Variables,
		Outputs:   []Output{{Data: data}},
	}
}

// NewFinalStepResult builds the terminal payload for op. It returns nil when
// op has not reached a terminal state. A failed operation carries a single
// output holding the error message so receivers that only read outputs still
// see it.
func NewFinalStepResult(op *Operation) *FinalStepResult {
	if !op.State.Terminal() || op.Result == nil || op.CompletedAt == nil {
		return nil
	}
	final := &FinalStepResult{
		Step:        StepRef{ID: op.StepID},
		Operation:   OperationRef{OperationID: op.ID},
		Status:      op.State,
		Variables:   op.Variables,
		Outputs:     op.Result.Outputs,
		CompletedAt: op.CompletedAt.UTC(),
	}
	if op.Result.Error != nil {
		final.Error = op.Result.Error
		final.Outputs = []Output{{Data: map[string]any{
			"error":      op.Result.Error.Message,
			"error_kind": string(op.Result.Error.Kind),
		}}}
	}
	if final.Outputs == nil {
		final.Outputs = []Output{}
	}
	return final
}
