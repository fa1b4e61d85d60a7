package candidate

import (
	"fmt"
	"strings"

	"github.com/matzehuels/flowmerge/pkg/errors"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// Issue codes.
const (
	CodeRequired    = "required"
	CodeInvalidType = "invalid_type"
	CodeInvalidEnum = "invalid_enum"
	CodeDuplicate   = "duplicate"
	CodeEmpty       = "empty"
	CodeInvalidID   = "invalid_id"
)

// Issue is one field-level validation failure.
type Issue struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// ValidationError carries every issue found in a payload.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "invalid candidate: " + e.Issues[0].String()
	}
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return fmt.Sprintf("invalid candidate (%d issues): %s", len(e.Issues), strings.Join(parts, "; "))
}

// nodeFields are the node keys that are not kind-specific config.
var nodeFields = map[string]bool{"id": true, "name": true, "description": true, "kind": true, "config": true}

type validator struct {
	issues []Issue
}

func (v *validator) add(path, code, format string, args ...any) {
	v.issues = append(v.issues, Issue{Path: path, Code: code, Message: fmt.Sprintf(format, args...)})
}

// Validate checks a decoded JSON tree (maps, slices and scalars) against the
// candidate schema and returns every issue found. A nil result means the
// tree can be turned into a [Payload].
func Validate(raw any) []Issue {
	var v validator
	root, ok := raw.(map[string]any)
	if !ok {
		v.add("", CodeInvalidType, "payload must be an object")
		return v.issues
	}
	v.optionalString(root, "", "name")
	v.optionalString(root, "", "description")

	if nodes, ok := v.array(root, "nodes"); ok {
		seen := make(map[string]int, len(nodes))
		for i, item := range nodes {
			v.node(fmt.Sprintf("nodes[%d]", i), item, seen, i)
		}
	}
	if edges, ok := v.array(root, "edges"); ok {
		for i, item := range edges {
			v.edge(fmt.Sprintf("edges[%d]", i), item)
		}
	}
	return v.issues
}

func (v *validator) array(root map[string]any, key string) ([]any, bool) {
	raw, ok := root[key]
	if !ok || raw == nil {
		v.add(key, CodeRequired, "%s is required", key)
		return nil, false
	}
	items, ok := raw.([]any)
	if !ok {
		v.add(key, CodeInvalidType, "%s must be an array", key)
		return nil, false
	}
	return items, true
}

func (v *validator) node(path string, item any, seen map[string]int, index int) {
	obj, ok := item.(map[string]any)
	if !ok {
		v.add(path, CodeInvalidType, "node must be an object")
		return
	}
	if id, ok := v.requiredString(obj, path, "id"); ok {
		if err := errors.ValidateNodeID(id); err != nil {
			v.add(path+".id", CodeInvalidID, "%s", errors.UserMessage(err))
		} else if first, dup := seen[id]; dup {
			v.add(path+".id", CodeDuplicate, "node id %q already used by nodes[%d]", id, first)
		} else {
			seen[id] = index
		}
	}
	if kind, ok := v.requiredString(obj, path, "kind"); ok {
		if _, err := workflow.ParseKind(kind); err != nil {
			v.add(path+".kind", CodeInvalidEnum, "unknown kind %q (want one of %s)", kind, strings.Join(workflow.KindNames(), ", "))
		}
	}
	v.optionalString(obj, path, "name")
	v.optionalString(obj, path, "description")
	if cfg, ok := obj["config"]; ok && cfg != nil {
		if _, ok := cfg.(map[string]any); !ok {
			v.add(path+".config", CodeInvalidType, "config must be an object")
		}
	}
}

func (v *validator) edge(path string, item any) {
	obj, ok := item.(map[string]any)
	if !ok {
		v.add(path, CodeInvalidType, "edge must be an object")
		return
	}
	v.requiredString(obj, path, "source")
	v.requiredString(obj, path, "target")
	for _, key := range []string{"id", "sourceHandle", "targetHandle", "label"} {
		v.optionalString(obj, path, key)
	}
}

func (v *validator) requiredString(obj map[string]any, path, key string) (string, bool) {
	field := join(path, key)
	raw, ok := obj[key]
	if !ok || raw == nil {
		v.add(field, CodeRequired, "%s is required", key)
		return "", false
	}
	s, ok := raw.(string)
	if !ok {
		v.add(field, CodeInvalidType, "%s must be a string", key)
		return "", false
	}
	if strings.TrimSpace(s) == "" {
		v.add(field, CodeEmpty, "%s must not be empty", key)
		return "", false
	}
	return s, true
}

func (v *validator) optionalString(obj map[string]any, path, key string) {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return
	}
	if _, ok := raw.(string); !ok {
		v.add(join(path, key), CodeInvalidType, "%s must be a string", key)
	}
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
