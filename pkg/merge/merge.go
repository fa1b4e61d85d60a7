// Package merge compiles a candidate graph into nodes and edges that can be
// appended to an existing workflow without breaking referential integrity.
//
// The [Engine] runs one batch at a time:
//
//  1. Seed the reserved id set with every existing node id.
//  2. Allocate a final id for each candidate node, in input order.
//  3. Materialize each node under its final id, remapping references.
//  4. Remap edge endpoints, drop edges that resolve to no node, and give
//     every kept edge a fresh id when its own is missing or taken.
//
// The result holds only the new increment; concatenating it with the
// existing graph is the caller's job (see [workflow.Document.Append]).
//
// Referential problems never fail a merge. Dangling edges are dropped and
// unresolved references are left in place; both are listed in the [Report].
package merge

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowmerge/pkg/candidate"
	"github.com/matzehuels/flowmerge/pkg/ident"
	"github.com/matzehuels/flowmerge/pkg/materialize"
	"github.com/matzehuels/flowmerge/pkg/refs"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// Option configures an [Engine].
type Option func(*Engine)

// WithLogger sets the logger used for merge diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIDGenerator replaces the random token source used for remapped ids.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.gen = gen }
}

// WithMaterializeOptions passes options to the engine's materializer.
func WithMaterializeOptions(opts ...materialize.Option) Option {
	return func(e *Engine) { e.matOpts = append(e.matOpts, opts...) }
}

// Engine merges candidate graphs for one materialization mode.
type Engine struct {
	mode    materialize.Mode
	mat     *materialize.Materializer
	matOpts []materialize.Option
	logger  *log.Logger
	gen     func() string
}

// NewEngine creates an engine for mode.
func NewEngine(mode materialize.Mode, opts ...Option) *Engine {
	e := &Engine{mode: mode, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(e)
	}
	e.mat = materialize.New(mode, e.matOpts...)
	return e
}

// Mode returns the engine's materialization mode.
func (e *Engine) Mode() materialize.Mode { return e.mode }

// DroppedEdge is a candidate edge left out of the result.
type DroppedEdge struct {
	Edge   candidate.Edge `json:"edge"`
	Reason string         `json:"reason"`
}

// Report lists everything the merge resolved on its own.
type Report struct {
	// Remapped maps candidate ids that collided to their final ids.
	Remapped map[string]string `json:"remapped,omitempty"`
	// DroppedEdges are edges whose endpoints resolved to no node.
	DroppedEdges []DroppedEdge `json:"droppedEdges,omitempty"`
	// Unresolved are references in the new nodes whose target exists
	// neither in the batch nor in the existing graph.
	Unresolved []workflow.LocatedRef `json:"unresolved,omitempty"`
	// SkippedNodes are candidate ids that appeared more than once or had no
	// valid kind. Only the first occurrence of an id is kept.
	SkippedNodes []string `json:"skippedNodes,omitempty"`
}

// Clean reports whether the merge needed no repairs beyond id remapping.
func (r Report) Clean() bool {
	return len(r.DroppedEdges) == 0 && len(r.Unresolved) == 0 && len(r.SkippedNodes) == 0
}

// Result is the merged increment.
type Result struct {
	Nodes  []workflow.Node `json:"nodes"`
	Edges  []workflow.Edge `json:"edges"`
	IDMap  refs.Map        `json:"idMap"`
	Report Report          `json:"report"`
}

// Merge compiles candidate nodes and edges against an existing graph. The
// inputs are not modified.
func (e *Engine) Merge(candNodes []candidate.Node, candEdges []candidate.Edge, existingNodes []workflow.Node, existingEdges []workflow.Edge) *Result {
	res := &Result{
		Nodes: make([]workflow.Node, 0, len(candNodes)),
		Edges: make([]workflow.Edge, 0, len(candEdges)),
		IDMap: make(refs.Map, len(candNodes)),
	}

	existingIDs := make([]string, len(existingNodes))
	present := make(map[string]bool, len(existingNodes)+len(candNodes))
	for i, n := range existingNodes {
		existingIDs[i] = n.ID
		present[n.ID] = true
	}
	nodeIDs := ident.New(existingIDs, e.identOpts()...)

	type planned struct {
		node    candidate.Node
		kind    workflow.Kind
		finalID string
	}
	plan := make([]planned, 0, len(candNodes))
	seen := make(map[string]bool, len(candNodes))
	for _, c := range candNodes {
		kind, err := workflow.ParseKind(string(c.Kind))
		if err != nil || (c.ID != "" && seen[c.ID]) {
			res.Report.SkippedNodes = append(res.Report.SkippedNodes, c.ID)
			continue
		}
		var final string
		if c.ID == "" {
			final = nodeIDs.Claim("")
		} else {
			seen[c.ID] = true
			final = nodeIDs.Allocate(c.ID)
			res.IDMap[c.ID] = final
			if final != c.ID {
				if res.Report.Remapped == nil {
					res.Report.Remapped = make(map[string]string)
				}
				res.Report.Remapped[c.ID] = final
			}
		}
		present[final] = true
		plan = append(plan, planned{node: c, kind: kind, finalID: final})
	}

	for _, p := range plan {
		res.Nodes = append(res.Nodes, e.mat.Materialize(p.kind, p.node.Payload(), p.finalID, res.IDMap))
	}

	existingEdgeIDs := make([]string, len(existingEdges))
	for i, ed := range existingEdges {
		existingEdgeIDs[i] = ed.ID
	}
	edgeIDs := ident.New(existingEdgeIDs, e.identOpts()...)
	for _, c := range candEdges {
		source := res.IDMap.Resolve(c.Source)
		target := res.IDMap.Resolve(c.Target)
		if reason := dangling(present, source, target); reason != "" {
			res.Report.DroppedEdges = append(res.Report.DroppedEdges, DroppedEdge{Edge: c, Reason: reason})
			e.logger.Debug("dropped edge", "source", c.Source, "target", c.Target, "reason", reason)
			continue
		}
		id := c.ID
		if id == "" {
			id = source + "-" + target
		}
		res.Edges = append(res.Edges, workflow.Edge{
			ID:           edgeIDs.Claim(id),
			Source:       source,
			Target:       target,
			SourceHandle: c.SourceHandle,
			TargetHandle: c.TargetHandle,
			Label:        c.Label,
		})
	}

	existing := make(map[string]bool, len(existingNodes))
	for _, id := range existingIDs {
		existing[id] = true
	}
	res.Report.Unresolved = refs.Unresolved(res.Nodes, existing)
	for _, r := range res.Report.Unresolved {
		e.logger.Debug("unresolved reference", "ref", r.String())
	}

	e.logger.Debug("merged candidate",
		"mode", e.mode,
		"nodes", len(res.Nodes),
		"edges", len(res.Edges),
		"remapped", len(res.Report.Remapped),
		"dropped", len(res.Report.DroppedEdges))
	return res
}

func (e *Engine) identOpts() []ident.Option {
	if e.gen == nil {
		return nil
	}
	return []ident.Option{ident.WithGenerator(e.gen)}
}

func dangling(present map[string]bool, source, target string) string {
	switch {
	case !present[source] && !present[target]:
		return fmt.Sprintf("unknown source %q and target %q", source, target)
	case !present[source]:
		return fmt.Sprintf("unknown source %q", source)
	case !present[target]:
		return fmt.Sprintf("unknown target %q", target)
	}
	return ""
}
