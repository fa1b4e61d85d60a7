package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// SourceRef points at the value found at Path inside the output of node NodeID.
type SourceRef struct {
	NodeID string   `json:"nodeId" yaml:"nodeId"`
	Path   []string `json:"path" yaml:"path"`
}

// NewRef creates a reference; Path is never nil.
func NewRef(nodeID string, path ...string) *SourceRef {
	if path == nil {
		path = []string{}
	}
	return &SourceRef{NodeID: nodeID, Path: path}
}

// Clone returns a copy of r, or nil for a nil receiver.
func (r *SourceRef) Clone() *SourceRef {
	if r == nil {
		return nil
	}
	return NewRef(r.NodeID, slices.Clone(r.Path)...)
}

// String renders the reference as nodeId.path.to.value.
func (r *SourceRef) String() string {
	if r == nil {
		return ""
	}
	s := r.NodeID
	for _, p := range r.Path {
		s += "." + p
	}
	return s
}

// Value is a literal string or a source reference. Exactly one of the two
// is meaningful: when Ref is set, Literal is ignored.
type Value struct {
	Literal string
	Ref     *SourceRef
}

// Literal creates a literal value.
func Literal(s string) *Value { return &Value{Literal: s} }

// RefValue creates a value pointing at another node's output.
func RefValue(nodeID string, path ...string) *Value {
	return &Value{Ref: NewRef(nodeID, path...)}
}

// IsRef reports whether v carries a source reference.
func (v *Value) IsRef() bool { return v != nil && v.Ref != nil }

// Clone returns a copy of v, or nil for a nil receiver.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	return &Value{Literal: v.Literal, Ref: v.Ref.Clone()}
}

// String returns the literal, or the reference in {{nodeId.path}} form.
func (v *Value) String() string {
	switch {
	case v == nil:
		return ""
	case v.Ref != nil:
		return "{{" + v.Ref.String() + "}}"
	}
	return v.Literal
}

// MarshalJSON encodes a literal as a JSON string and a reference as an object.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Ref != nil {
		return json.Marshal(v.Ref)
	}
	return json.Marshal(v.Literal)
}

// UnmarshalJSON accepts a JSON string or a {nodeId, path} object.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*v = Value{}
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value{Literal: s}
		return nil
	case data[0] == '{':
		var ref SourceRef
		if err := json.Unmarshal(data, &ref); err != nil {
			return err
		}
		*v = Value{Ref: NewRef(ref.NodeID, ref.Path...)}
		return nil
	}
	return fmt.Errorf("value must be a string or a source reference, got %s", data)
}

// MarshalYAML mirrors MarshalJSON.
func (v Value) MarshalYAML() (any, error) {
	if v.Ref != nil {
		return v.Ref, nil
	}
	return v.Literal, nil
}

// UnmarshalYAML mirrors UnmarshalJSON.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*v = Value{Literal: s}
		return nil
	case yaml.MappingNode:
		var ref SourceRef
		if err := node.Decode(&ref); err != nil {
			return err
		}
		*v = Value{Ref: NewRef(ref.NodeID, ref.Path...)}
		return nil
	}
	return fmt.Errorf("line %d: value must be a string or a source reference", node.Line)
}

// KeyValue is a header or query parameter entry.
type KeyValue struct {
	Key   string `json:"key" yaml:"key"`
	Value *Value `json:"value,omitempty" yaml:"value,omitempty"`
}

func cloneKeyValues(in []KeyValue) []KeyValue {
	if in == nil {
		return nil
	}
	out := make([]KeyValue, len(in))
	for i, kv := range in {
		out[i] = KeyValue{Key: kv.Key, Value: kv.Value.Clone()}
	}
	return out
}
