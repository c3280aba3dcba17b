package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/domain"
)

func run(t *testing.T, input map[string]any) map[string]any {
	t.Helper()
	outputs, err := New(newTestRegistry(), nil).Execute(context.Background(), execution(input))
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	return outputs[0].Data
}

func TestTextProcessor_Uppercase(t *testing.T) {
	data := run(t, map[string]any{"text": "Hello World", "operation": "uppercase"})

	assert.Equal(t, "HELLO WORLD", data["processed_text"])
	assert.Equal(t, "Hello World", data["original_text"])
	assert.Equal(t, "uppercase", data["operation"])
	assert.Equal(t, 11, data["length"])
	assert.Equal(t, "en", data["language"])
	assert.Equal(t, "plain", data["format"])
	assert.Equal(t, "utf-8", data["encoding"])
	assert.Equal(t, map[string]any{}, data["metadata"])

	opts := data["processing_options"].(map[string]any)
	assert.Equal(t, 1000, opts["max_length"])
	assert.Equal(t, false, opts["add_timestamp"])
}

func TestTransforms(t *testing.T) {
	tests := []struct {
		operation string
		text      string
		want      string
	}{
		{"uppercase", "héllo", "HÉLLO"},
		{"lowercase", "HeLLo", "hello"},
		{"reverse", "abc déf", "féd cba"},
		{"title", "hello wORLD", "Hello World"},
		{"title", "they're 2nd", "They'Re 2Nd"},
		{"capitalize", "hELLO World", "Hello world"},
		{"strip", "  padded \n", "padded"},
		{"word_count", "one two  three", "3"},
		{"char_count", "héllo", "5"},
		{"token_count", "Hello World", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.operation+"/"+tt.text, func(t *testing.T) {
			data := run(t, map[string]any{"text": tt.text, "operation": tt.operation})
			assert.Equal(t, tt.want, data["processed_text"])
			assert.Equal(t, tt.operation, data["operation"])
		})
	}
}

func TestTextProcessor_UnknownOperationUsesDefault(t *testing.T) {
	data := run(t, map[string]any{"text": "abc", "operation": "shout"})
	assert.Equal(t, "ABC", data["processed_text"])
	assert.Equal(t, "uppercase", data["operation"])
}

func TestTextProcessor_Options(t *testing.T) {
	t.Run("remove punctuation", func(t *testing.T) {
		data := run(t, map[string]any{"text": "Hi, there! (ok)", "operation": "lowercase", "remove_punctuation": true})
		assert.Equal(t, "hi there ok", data["processed_text"])
	})

	t.Run("truncates by runes", func(t *testing.T) {
		data := run(t, map[string]any{"text": "ééééé", "operation": "uppercase", "max_length": 3.0})
		assert.Equal(t, "ÉÉÉ", data["processed_text"])
		assert.Equal(t, 3, data["length"])
	})

	t.Run("metadata passes through", func(t *testing.T) {
		data := run(t, map[string]any{"text": "a", "metadata": map[string]any{"k": "v"}})
		assert.Equal(t, map[string]any{"k": "v"}, data["metadata"])
	})

	t.Run("timestamp prefix", func(t *testing.T) {
		p := NewTextProcessor("uppercase", pure(strings.ToUpper))
		p.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

		outputs, err := p.Process(context.Background(), execution(map[string]any{"text": "hi", "add_timestamp": true}))
		require.NoError(t, err)
		assert.Equal(t, "[2024-01-02T03:04:05Z] HI", outputs[0].Data["processed_text"])
	})

	t.Run("token count by model name", func(t *testing.T) {
		data := run(t, map[string]any{"text": "Hello World", "operation": "token_count", "tokenizer": "gpt-4o"})
		assert.Equal(t, "2", data["processed_text"])
	})
}

func TestTextProcessor_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]any
		field string
	}{
		{"missing text", map[string]any{"operation": "uppercase"}, "text"},
		{"empty text", map[string]any{"text": ""}, "text"},
		{"text not string", map[string]any{"text": 5.0}, "text"},
		{"max_length too small", map[string]any{"text": "a", "max_length": 0.0}, "max_length"},
		{"max_length too large", map[string]any{"text": "a", "max_length": 100001.0}, "max_length"},
		{"max_length fractional", map[string]any{"text": "a", "max_length": 2.5}, "max_length"},
		{"bool wrong type", map[string]any{"text": "a", "add_timestamp": "yes"}, "add_timestamp"},
		{"metadata wrong type", map[string]any{"text": "a", "metadata": "x"}, "metadata"},
		{"unknown tokenizer", map[string]any{"text": "a", "operation": "token_count", "tokenizer": "nope"}, "tokenizer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(newTestRegistry(), nil).Execute(context.Background(), execution(tt.input))
			require.Error(t, err)

			var derr *domain.Error
			require.True(t, errors.As(err, &derr))
			assert.Equal(t, domain.ErrorKindValidation, derr.Kind)
			assert.Equal(t, tt.field, derr.Field)
		})
	}
}

func TestChain(t *testing.T) {
	var emitted []map[string]any
	exec := execution(map[string]any{
		"text":       "  Hello World ",
		"operation":  "chain",
		"operations": []any{"strip", "reverse", "uppercase"},
	})
	exec.Emit = func(ctx context.Context, data map[string]any) error {
		emitted = append(emitted, data)
		return nil
	}

	outputs, err := New(newTestRegistry(), nil).Execute(context.Background(), exec)
	require.NoError(t, err)

	require.Len(t, emitted, 3)
	assert.Equal(t, "Hello World", emitted[0]["processed_text"])
	assert.Equal(t, "dlroW olleH", emitted[1]["processed_text"])
	assert.Equal(t, "DLROW OLLEH", emitted[2]["processed_text"])
	assert.Equal(t, 2, emitted[1]["stage"])
	assert.Equal(t, 3, emitted[1]["total_stages"])
	assert.Equal(t, "reverse", emitted[1]["operation"])

	data := outputs[0].Data
	assert.Equal(t, "chain", data["operation"])
	assert.Equal(t, "DLROW OLLEH", data["processed_text"])
	assert.Equal(t, []string{"strip", "reverse", "uppercase"}, data["operations"])
}

func TestChain_WithoutEmit(t *testing.T) {
	data := run(t, map[string]any{"text": "ab", "operation": "chain", "operations": []any{"reverse", "char_count"}})
	assert.Equal(t, "2", data["processed_text"])
}

func TestChain_EmitErrorStops(t *testing.T) {
	exec := execution(map[string]any{"text": "ab", "operation": "chain", "operations": []any{"reverse", "uppercase"}})
	calls := 0
	exec.Emit = func(ctx context.Context, data map[string]any) error {
		calls++
		return context.Canceled
	}

	_, err := New(newTestRegistry(), nil).Execute(context.Background(), exec)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestChain_ValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		operations any
	}{
		{"missing", nil},
		{"empty", []any{}},
		{"not strings", []any{1.0}},
		{"unknown stage", []any{"shout"}},
		{"nested chain", []any{"chain"}},
		{"echo stage", []any{"echo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := map[string]any{"text": "ab", "operation": "chain"}
			if tt.operations != nil {
				input["operations"] = tt.operations
			}
			_, err := New(newTestRegistry(), nil).Execute(context.Background(), execution(input))
			assert.Equal(t, domain.ErrorKindValidation, domain.KindOf(err))
		})
	}
}

func TestEcho(t *testing.T) {
	exec := execution(map[string]any{"operation": "echo", "anything": []any{1.0, "two"}})
	outputs, err := New(newTestRegistry(), nil).Execute(context.Background(), exec)
	require.NoError(t, err)

	data := outputs[0].Data
	assert.Equal(t, exec.Input, data["processed_data"])
	assert.Equal(t, exec.OperationID.String(), data["operation_id"])
	_, err = time.Parse(time.RFC3339Nano, data["processed_at"].(string))
	assert.NoError(t, err)
}
