package workflow

import (
	"github.com/matzehuels/flowmerge/pkg/errors"
)

// Schema is a JSON-Schema-shaped object describing a node's output.
type Schema map[string]any

// DefaultOutputSchema returns a new empty object schema. Every call returns
// a distinct map, so callers may mutate the result freely.
func DefaultOutputSchema() Schema {
	return Schema{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// Clone returns a deep copy of s.
func (s Schema) Clone() Schema {
	if s == nil {
		return nil
	}
	return Schema(cloneMap(s))
}

// Validate checks the schema shape the editor relies on: a non-empty
// object whose "type", when present, is a string or a list of strings, and
// whose "properties", when present, is an object.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "output schema is empty")
	}
	if t, ok := s["type"]; ok {
		switch tv := t.(type) {
		case string:
		case []string:
		case []any:
			for _, item := range tv {
				if _, ok := item.(string); !ok {
					return errors.New(errors.ErrCodeInvalidConfig, "output schema type list must hold strings")
				}
			}
		default:
			return errors.New(errors.ErrCodeInvalidConfig, "output schema type must be a string")
		}
	}
	if p, ok := s["properties"]; ok {
		if _, ok := p.(map[string]any); !ok {
			return errors.New(errors.ErrCodeInvalidConfig, "output schema properties must be an object")
		}
	}
	return nil
}

// cloneMap deep-copies JSON-shaped data (maps, slices and scalars).
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneAny(v)
	}
	return out
}

func cloneAny(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return cloneMap(tv)
	case Schema:
		return Schema(cloneMap(tv))
	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = cloneAny(item)
		}
		return out
	case []string:
		out := make([]string, len(tv))
		copy(out, tv)
		return out
	}
	return v
}

// CloneMap deep-copies a JSON-shaped map.
func CloneMap(m map[string]any) map[string]any { return cloneMap(m) }
