// Package refs rewrites source references after node ids are remapped.
//
// Only a closed set of node fields may carry a [workflow.SourceRef]: the
// Http url, header values, query values and body, and the source of each
// Output mapping. [Node] rewrites exactly those fields; everything else is
// copied untouched.
package refs

import "github.com/matzehuels/flowmerge/pkg/workflow"

// Map maps candidate node ids to their final ids.
type Map map[string]string

// Resolve returns the final id for id, or id itself when it was not
// remapped (it may name a pre-existing node).
func (m Map) Resolve(id string) string {
	if final, ok := m[id]; ok {
		return final
	}
	return id
}

// Fields lists the reference-bearing fields in rewrite order.
var Fields = workflow.RefFields

// Ref returns a remapped copy of r.
func Ref(r *workflow.SourceRef, m Map) *workflow.SourceRef {
	if r == nil {
		return nil
	}
	out := r.Clone()
	out.NodeID = m.Resolve(r.NodeID)
	return out
}

// Value returns a copy of v with its reference remapped. Literals are
// copied as-is.
func Value(v *workflow.Value, m Map) *workflow.Value {
	if v == nil {
		return nil
	}
	return &workflow.Value{Literal: v.Literal, Ref: Ref(v.Ref, m)}
}

// KeyValues returns a copy of kvs with every value remapped.
func KeyValues(kvs []workflow.KeyValue, m Map) []workflow.KeyValue {
	if kvs == nil {
		return nil
	}
	out := make([]workflow.KeyValue, len(kvs))
	for i, kv := range kvs {
		out[i] = workflow.KeyValue{Key: kv.Key, Value: Value(kv.Value, m)}
	}
	return out
}

// Outputs returns a copy of outputs with every source remapped.
func Outputs(outputs []workflow.OutputMapping, m Map) []workflow.OutputMapping {
	if outputs == nil {
		return nil
	}
	out := make([]workflow.OutputMapping, len(outputs))
	for i, o := range outputs {
		out[i] = workflow.OutputMapping{Key: o.Key, Source: Ref(o.Source, m)}
	}
	return out
}

// Node returns a copy of n with every reference-bearing field remapped.
func Node(n *workflow.Node, m Map) workflow.Node {
	out := n.Clone()
	out.URL = Value(n.URL, m)
	out.Headers = KeyValues(n.Headers, m)
	out.Query = KeyValues(n.Query, m)
	out.Body = Value(n.Body, m)
	out.OutputData = Outputs(n.OutputData, m)
	return out
}

// Collect returns every reference held by n with its field path.
func Collect(n *workflow.Node) []workflow.LocatedRef {
	return n.Refs()
}

// Unresolved returns the references in nodes whose target is neither one of
// nodes nor in known.
func Unresolved(nodes []workflow.Node, known map[string]bool) []workflow.LocatedRef {
	ids := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = true
	}
	var out []workflow.LocatedRef
	for i := range nodes {
		for _, r := range Collect(&nodes[i]) {
			if !ids[r.Ref.NodeID] && !known[r.Ref.NodeID] {
				out = append(out, r)
			}
		}
	}
	return out
}
