package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/domain"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/ports"
)

// ChainName is the operation name of the chain processor.
const ChainName = "chain"

// Chain applies a list of text operations in order. Each stage's output is
// emitted as an intermediate result before the final output is returned.
type Chain struct {
	registry *Registry
	now      func() time.Time
}

// NewChain creates a chain whose stages are looked up in registry. Only
// text operations can be chained.
func NewChain(registry *Registry) *Chain {
	return &Chain{registry: registry, now: time.Now}
}

func (c *Chain) Name() string { return ChainName }

func (c *Chain) Process(ctx context.Context, exec *ports.Execution) ([]domain.Output, error) {
	opts, err := ParseTextOptions(exec.Input)
	if err != nil {
		return nil, err
	}

	names, err := Params(exec.Input).Strings("operations")
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, domain.ErrValidation("operations must list at least one operation").WithField("operations")
	}

	stages := make([]*TextProcessor, 0, len(names))
	for _, name := range names {
		p, ok := c.registry.Lookup(name)
		if !ok {
			return nil, domain.ErrValidation(fmt.Sprintf("unsupported operation %q in chain", name)).WithField("operations")
		}
		tp, ok := p.(*TextProcessor)
		if !ok {
			return nil, domain.ErrValidation(fmt.Sprintf("operation %q cannot be chained", name)).WithField("operations")
		}
		stages = append(stages, tp)
	}

	text := prepare(opts)
	for i, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err = stage.Apply(ctx, text, opts)
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i+1, stage.Name(), err)
		}

		if exec.Emit != nil {
			if err := exec.Emit(ctx, map[string]any{
				"stage":          i + 1,
				"total_stages":   len(stages),
				"operation":      stage.Name(),
				"processed_text": text,
			}); err != nil {
				return nil, err
			}
		}
	}

	processed := finish(text, opts, c.now())
	data := textResult(ChainName, processed, opts)
	data["operations"] = names
	return []domain.Output{{Data: data}}, nil
}

var _ ports.Processor = (*Chain)(nil)
