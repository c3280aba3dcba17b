package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepCall_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *StepCall)
		details []string
	}{
		{
			name:   "valid",
			mutate: func(c *StepCall) {},
		},
		{
			name:    "missing step id",
			mutate:  func(c *StepCall) { c.Step.ID = "" },
			details: []string{"step.id: field required"},
		},
		{
			name:    "step id not a uuid",
			mutate:  func(c *StepCall) { c.Step.ID = "step-1" },
			details: []string{"step.id: must be a valid UUID"},
		},
		{
			name:    "missing webhook url",
			mutate:  func(c *StepCall) { c.Webhook.URL = "" },
			details: []string{"webhook.url: field required"},
		},
		{
			name:    "relative webhook url",
			mutate:  func(c *StepCall) { c.Webhook.URL = "/callback" },
			details: []string{"webhook.url: must be an absolute http(s) URL"},
		},
		{
			name:    "non-http scheme",
			mutate:  func(c *StepCall) { c.Webhook.URL = "ftp://example.com/x" },
			details: []string{"webhook.url: must be an absolute http(s) URL"},
		},
		{
			name:    "missing input",
			mutate:  func(c *StepCall) { c.Initial.Input = nil },
			details: []string{"initial.input: field required"},
		},
		{
			name: "multiple violations are collected",
			mutate: func(c *StepCall) {
				c.Step.ID = ""
				c.Initial.Input = nil
			},
			details: []string{"step.id: field required", "initial.input: field required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := newTestCall()
			tt.mutate(call)
			err := call.Validate()
			if tt.details == nil {
				require.NoError(t, err)
				return
			}
			var de *Error
			require.True(t, errors.As(err, &de))
			assert.Equal(t, ErrorKindValidation, de.Kind)
			assert.Equal(t, tt.details, de.Details)
		})
	}
}

func TestStepCall_UnknownFieldsIgnored(t *testing.T) {
	body := `{
		"step": {"id": "7b0e6f5c-3a8e-4c61-9d1e-2f4b5a6c7d8e", "extra": 1},
		"webhook": {"url": "https://hooks.example.com/r"},
		"initial": {"input": {"text": "hi", "future_field": {"nested": true}}},
		"new_top_level": "ignored"
	}`
	var call StepCall
	require.NoError(t, json.Unmarshal([]byte(body), &call))
	require.NoError(t, call.Validate())
	assert.Equal(t, map[string]any{"nested": true}, call.Initial.Input["future_field"])
}

func TestNewFinalStepResult(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("nil before terminal", func(t *testing.T) {
		op := NewOperation(newTestCall(), now)
		assert.Nil(t, NewFinalStepResult(op))
		require.NoError(t, op.Transition(StateRunning, now))
		assert.Nil(t, NewFinalStepResult(op))
	})

	t.Run("success", func(t *testing.T) {
		op := NewOperation(newTestCall(), now)
		require.NoError(t, op.Transition(StateRunning, now))
		data := map[string]any{"processed_text": "HELLO WORLD"}
		require.NoError(t, op.Succeed([]Output{{Data: data}}, now))

		final := NewFinalStepResult(op)
		require.NotNil(t, final)
		assert.Equal(t, op.StepID, final.Step.ID)
		assert.Equal(t, op.ID, final.Operation.OperationID)
		assert.Equal(t, StateSucceeded, final.Status)
		assert.Nil(t, final.Error)
		assert.Equal(t, data, final.Outputs[0].Data)
		assert.Equal(t, op.Variables, final.Variables)
	})

	t.Run("failure", func(t *testing.T) {
		op := NewOperation(newTestCall(), now)
		require.NoError(t, op.Transition(StateRunning, now))
		require.NoError(t, op.Fail(ErrValidation("Text is required"), now))

		final := NewFinalStepResult(op)
		require.NotNil(t, final)
		assert.Equal(t, StateFailed, final.Status)
		require.NotNil(t, final.Error)
		assert.Equal(t, ErrorKindValidation, final.Error.Kind)
		assert.Equal(t, "Text is required", final.Outputs[0].Data["error"])

		raw, err := json.Marshal(final)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"operation":{"operation_id":"`+op.ID.String()+`"}`)
		assert.Contains(t, string(raw), `"error":{"kind":"validation","message":"Text is required"}`)
	})
}
