// Package candidate decodes and validates the untrusted graph a generator
// proposes.
//
// A candidate payload has two top-level arrays, nodes and edges:
//
//	{
//	  "name": "Summarize a page",
//	  "nodes": [
//	    {"id": "input", "kind": "input"},
//	    {"id": "llm", "kind": "llm", "messages": [{"role": "user", "content": "Summarize"}]}
//	  ],
//	  "edges": [{"source": "input", "target": "llm"}]
//	}
//
// [Decode] validates the raw tree before building a [Payload], so a payload
// that reaches the merge engine is structurally sound. Failures are reported
// as a list of field-level [Issue] values, never as a panic.
package candidate

import (
	"maps"

	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// Payload is a validated candidate graph.
type Payload struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Nodes       []Node `json:"nodes"`
	Edges       []Edge `json:"edges"`
}

// Node is a candidate node. Config holds every kind-specific field, whether
// the generator put it at the top level or inside a "config" object.
type Node struct {
	ID          string         `json:"id"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Kind        workflow.Kind  `json:"kind"`
	Config      map[string]any `json:"config,omitempty"`
}

// Payload returns the node's fields in the shape the materializer reads.
// A non-empty top-level Name or Description replaces config["name"] or
// config["description"]; config only supplies them when the top level
// leaves them empty. Kind-specific keys come from Config unchanged.
func (n Node) Payload() map[string]any {
	out := maps.Clone(n.Config)
	if out == nil {
		out = make(map[string]any, 2)
	}
	if n.Name != "" {
		out["name"] = n.Name
	}
	if n.Description != "" {
		out["description"] = n.Description
	}
	return out
}

// Edge is a candidate edge. ID may be empty.
type Edge struct {
	ID           string `json:"id,omitempty"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
	Label        string `json:"label,omitempty"`
}

// NodeIDs returns the candidate node ids in input order.
func (p *Payload) NodeIDs() []string {
	ids := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// IsEmpty reports whether the payload has neither nodes nor edges.
func (p *Payload) IsEmpty() bool { return len(p.Nodes) == 0 && len(p.Edges) == 0 }
