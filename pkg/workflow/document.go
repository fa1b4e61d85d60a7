package workflow

import (
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/flowmerge/pkg/dag"
	"github.com/matzehuels/flowmerge/pkg/errors"
)

// Document is a persisted workflow graph.
type Document struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Nodes       []Node    `json:"nodes" yaml:"nodes"`
	Edges       []Edge    `json:"edges" yaml:"edges"`
	Version     int64     `json:"version" yaml:"version"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// NewDocument creates an empty document with non-nil node and edge lists.
func NewDocument(id, name string) *Document {
	return &Document{ID: id, Name: name, Nodes: []Node{}, Edges: []Edge{}}
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	out := *d
	out.Nodes = make([]Node, len(d.Nodes))
	for i, n := range d.Nodes {
		out.Nodes[i] = n.Clone()
	}
	out.Edges = slices.Clone(d.Edges)
	if out.Edges == nil {
		out.Edges = []Edge{}
	}
	return &out
}

// NodeIDs returns the ids of all nodes in document order.
func (d *Document) NodeIDs() []string {
	ids := make([]string, len(d.Nodes))
	for i, n := range d.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// EdgeIDs returns the ids of all edges in document order.
func (d *Document) EdgeIDs() []string {
	ids := make([]string, len(d.Edges))
	for i, e := range d.Edges {
		ids[i] = e.ID
	}
	return ids
}

// Node returns a pointer to the node with the given id.
func (d *Document) Node(id string) (*Node, bool) {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i], true
		}
	}
	return nil, false
}

// Append concatenates a merge increment after the existing nodes and edges.
func (d *Document) Append(nodes []Node, edges []Edge) {
	d.Nodes = append(d.Nodes, nodes...)
	d.Edges = append(d.Edges, edges...)
}

// Drafts returns the ids of all unreviewed AI drafts.
func (d *Document) Drafts() []string {
	var ids []string
	for _, n := range d.Nodes {
		if n.IsDraft() {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// AcceptDrafts marks the given drafts as reviewed (all drafts when ids is
// empty) and returns how many nodes changed. generatedByAI is kept.
func (d *Document) AcceptDrafts(ids ...string) int {
	accepted := 0
	for i := range d.Nodes {
		n := &d.Nodes[i]
		if !n.IsDraft() || (len(ids) > 0 && !slices.Contains(ids, n.ID)) {
			continue
		}
		n.Runtime.IsNew = false
		accepted++
	}
	return accepted
}

// RejectReport describes what RejectDrafts removed.
type RejectReport struct {
	RemovedNodes []string     `json:"removedNodes"`
	RemovedEdges []string     `json:"removedEdges"`
	ClearedRefs  []LocatedRef `json:"clearedRefs,omitempty"`
}

// RejectDrafts removes the given drafts (all drafts when ids is empty),
// every edge touching them, and every reference in the remaining nodes that
// pointed at a removed node. Non-draft ids are ignored.
func (d *Document) RejectDrafts(ids ...string) RejectReport {
	removed := make(map[string]bool)
	var report RejectReport
	nodes := d.Nodes[:0]
	for _, n := range d.Nodes {
		if n.IsDraft() && (len(ids) == 0 || slices.Contains(ids, n.ID)) {
			removed[n.ID] = true
			report.RemovedNodes = append(report.RemovedNodes, n.ID)
			continue
		}
		nodes = append(nodes, n)
	}
	d.Nodes = nodes
	if len(removed) == 0 {
		return report
	}

	edges := d.Edges[:0]
	for _, e := range d.Edges {
		if removed[e.Source] || removed[e.Target] {
			report.RemovedEdges = append(report.RemovedEdges, e.ID)
			continue
		}
		edges = append(edges, e)
	}
	d.Edges = edges

	for i := range d.Nodes {
		n := &d.Nodes[i]
		n.VisitRefs(func(field string, ref *SourceRef) *SourceRef {
			if removed[ref.NodeID] {
				report.ClearedRefs = append(report.ClearedRefs, LocatedRef{NodeID: n.ID, Field: field, Ref: *ref})
				return nil
			}
			return ref
		})
	}
	return report
}

// DanglingRefs lists every reference whose target node is not in the document.
func (d *Document) DanglingRefs() []LocatedRef {
	return DanglingRefs(d.Nodes)
}

// DanglingRefs lists every reference in nodes whose target is not among nodes.
func DanglingRefs(nodes []Node) []LocatedRef {
	ids := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = true
	}
	var out []LocatedRef
	for i := range nodes {
		for _, r := range nodes[i].Refs() {
			if !ids[r.Ref.NodeID] {
				out = append(out, r)
			}
		}
	}
	return out
}

// BuildDAG converts nodes and edges into a [dag.DAG]. Edges with unknown
// endpoints are skipped; duplicate node ids keep their first occurrence.
func BuildDAG(nodes []Node, edges []Edge) *dag.DAG {
	g := dag.New()
	for _, n := range nodes {
		_ = g.AddNode(dag.Node{ID: n.ID})
	}
	for _, e := range edges {
		_ = g.AddEdge(dag.Edge{From: e.Source, To: e.Target})
	}
	return g
}

// CheckAcyclic returns a GRAPH_CYCLE error naming one cycle when the graph
// has a directed cycle (self-loops included). The merge itself accepts
// cycles; call this when the executing runtime requires a DAG.
func CheckAcyclic(nodes []Node, edges []Edge) error {
	if cycle := BuildDAG(nodes, edges).FindCycle(); cycle != nil {
		return errors.New(errors.ErrCodeGraphCycle, "workflow contains a cycle: %s", strings.Join(cycle, " -> "))
	}
	return nil
}
