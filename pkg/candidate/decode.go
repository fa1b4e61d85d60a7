package candidate

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/flowmerge/pkg/errors"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// Parse decodes JSON or YAML into a JSON-shaped tree. YAML input is
// normalized through JSON so both encodings yield the same value types.
func Parse(data []byte, format string) (any, error) {
	var raw any
	switch format {
	case workflow.FormatJSON, "":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPayload, err, "candidate is not valid JSON")
		}
		return raw, nil
	case workflow.FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPayload, err, "candidate is not valid YAML")
		}
		normalized, err := json.Marshal(raw)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPayload, err, "candidate YAML has non-string keys")
		}
		raw = nil
		if err := json.Unmarshal(normalized, &raw); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPayload, err, "normalize candidate YAML")
		}
		return raw, nil
	}
	return nil, errors.New(errors.ErrCodeUnsupported, "unsupported candidate format %q", format)
}

// Decode parses and validates a candidate. Schema failures are returned as
// an INVALID_PAYLOAD error wrapping a [*ValidationError].
func Decode(data []byte, format string) (*Payload, error) {
	raw, err := Parse(data, format)
	if err != nil {
		return nil, err
	}
	return FromTree(raw)
}

// FromTree validates a parsed tree and builds the payload.
func FromTree(raw any) (*Payload, error) {
	if issues := Validate(raw); len(issues) > 0 {
		verr := &ValidationError{Issues: issues}
		return nil, errors.Wrap(errors.ErrCodeInvalidPayload, verr, "candidate failed validation")
	}
	root := raw.(map[string]any)

	p := &Payload{
		Name:        str(root["name"]),
		Description: str(root["description"]),
	}
	nodes := root["nodes"].([]any)
	p.Nodes = make([]Node, 0, len(nodes))
	for _, item := range nodes {
		obj := item.(map[string]any)
		kind, _ := workflow.ParseKind(str(obj["kind"]))
		p.Nodes = append(p.Nodes, Node{
			ID:          str(obj["id"]),
			Name:        str(obj["name"]),
			Description: str(obj["description"]),
			Kind:        kind,
			Config:      config(obj),
		})
	}
	edges := root["edges"].([]any)
	p.Edges = make([]Edge, 0, len(edges))
	for _, item := range edges {
		obj := item.(map[string]any)
		p.Edges = append(p.Edges, Edge{
			ID:           str(obj["id"]),
			Source:       str(obj["source"]),
			Target:       str(obj["target"]),
			SourceHandle: str(obj["sourceHandle"]),
			TargetHandle: str(obj["targetHandle"]),
			Label:        str(obj["label"]),
		})
	}
	return p, nil
}

// Issues extracts the validation issues carried by err, if any.
func Issues(err error) []Issue {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Issues
	}
	return nil
}

// config merges the flat kind-specific fields of a node with its config
// object. Config keys win.
func config(obj map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range obj {
		if !nodeFields[k] {
			out[k] = v
		}
	}
	if cfg, ok := obj["config"].(map[string]any); ok {
		for k, v := range cfg {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
