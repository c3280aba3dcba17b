package engine

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/domain"
)

// Params reads typed options out of an open input mapping. Absent or null
// fields yield the default; present fields of the wrong type yield a
// validation error naming the field.
type Params map[string]any

func (p Params) lookup(key string) (any, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func typeError(key, want string) error {
	return domain.ErrValidation(fmt.Sprintf("%s must be %s", key, want)).WithField(key)
}

func (p Params) String(key, def string) (string, error) {
	v, ok := p.lookup(key)
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", typeError(key, "a string")
	}
	return s, nil
}

func (p Params) Bool(key string, def bool) (bool, error) {
	v, ok := p.lookup(key)
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, typeError(key, "a boolean")
	}
	return b, nil
}

// Int reads an integer within [min, max]. JSON numbers arrive as float64 and
// must be integral.
func (p Params) Int(key string, def, min, max int) (int, error) {
	v, ok := p.lookup(key)
	if !ok {
		return def, nil
	}

	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int64:
		n = int(x)
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return 0, typeError(key, "an integer")
		}
		n = int(x)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return 0, typeError(key, "an integer")
		}
		n = int(i)
	default:
		return 0, typeError(key, "an integer")
	}

	if n < min || n > max {
		return 0, domain.ErrValidation(fmt.Sprintf("%s must be between %d and %d", key, min, max)).WithField(key)
	}
	return n, nil
}

func (p Params) Map(key string) (map[string]any, error) {
	v, ok := p.lookup(key)
	if !ok {
		return map[string]any{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, typeError(key, "an object")
	}
	return m, nil
}

// Strings reads an array whose elements must all be strings.
func (p Params) Strings(key string) ([]string, error) {
	v, ok := p.lookup(key)
	if !ok {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss, nil
		}
		return nil, typeError(key, "an array of strings")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, typeError(key, "an array of strings")
		}
		out = append(out, s)
	}
	return out, nil
}
