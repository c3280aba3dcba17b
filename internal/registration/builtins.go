package registration

import (
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/engine"
)

// DefaultOperation is used when an input omits the operation field.
const DefaultOperation = "uppercase"

// RegisterBuiltins registers every built-in processor family explicitly.
// It is called by the runtime and by tests before building an engine.
func RegisterBuiltins(reg *engine.Registry) {
	RegisterTextBuiltins(reg)
	reg.Register(engine.NewChain(reg))
	reg.Register(engine.NewEcho())
}

// RegisterTextBuiltins registers the transform and count families only.
func RegisterTextBuiltins(reg *engine.Registry) {
	for _, p := range engine.Transforms() {
		reg.Register(p)
	}
	for _, p := range engine.Counts() {
		reg.Register(p)
	}
}

// NewRegistry returns a registry with all built-ins registered.
func NewRegistry() *engine.Registry {
	reg := engine.NewRegistry(DefaultOperation)
	RegisterBuiltins(reg)
	return reg
}
