package engine

import (
	"context"
	"maps"
	"time"

	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/domain"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/ports"
)

// EchoName is the operation name of the echo processor.
const EchoName = "echo"

// Echo returns its input unchanged along with processing metadata.
type Echo struct {
	now func() time.Time
}

func NewEcho() *Echo {
	return &Echo{now: time.Now}
}

func (e *Echo) Name() string { return EchoName }

func (e *Echo) Process(_ context.Context, exec *ports.Execution) ([]domain.Output, error) {
	return []domain.Output{{Data: map[string]any{
		"processed_data": maps.Clone(exec.Input),
		"processed_at":   e.now().UTC().Format(time.RFC3339Nano),
		"operation_id":   exec.OperationID.String(),
	}}}, nil
}

var _ ports.Processor = (*Echo)(nil)
