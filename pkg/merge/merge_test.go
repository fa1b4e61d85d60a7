package merge

import (
	"encoding/json"
	"fmt"
	"slices"
	"testing"

	"github.com/matzehuels/flowmerge/pkg/candidate"
	"github.com/matzehuels/flowmerge/pkg/materialize"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

func sequence() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%08x", n)
	}
}

func draftEngine() *Engine {
	return NewEngine(materialize.ModeDraftMerge, WithIDGenerator(sequence()))
}

func TestEmptyCandidate(t *testing.T) {
	res := draftEngine().Merge(nil, nil, []workflow.Node{{ID: "a"}}, []workflow.Edge{{ID: "e"}})
	if len(res.Nodes) != 0 || len(res.Edges) != 0 {
		t.Errorf("Merge(empty) = %+v", res)
	}
	if !res.Report.Clean() {
		t.Errorf("report = %+v", res.Report)
	}
}

func TestCollisionScenario(t *testing.T) {
	cand := []candidate.Node{
		{ID: "input", Kind: workflow.KindInput},
		{ID: "llm", Kind: workflow.KindLLM, Config: map[string]any{
			"messages": []any{map[string]any{"role": "user", "content": "Summarize {{input.result}}"}},
		}},
	}
	edges := []candidate.Edge{{Source: "input", Target: "llm"}}
	existing := []workflow.Node{{ID: "input", Kind: workflow.KindInput}}

	res := draftEngine().Merge(cand, edges, existing, nil)

	if len(res.Nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(res.Nodes))
	}
	in, llm := res.Nodes[0], res.Nodes[1]
	if in.ID == "input" || in.ID == llm.ID {
		t.Errorf("node ids = %q, %q", in.ID, llm.ID)
	}
	if res.Report.Remapped["input"] != in.ID {
		t.Errorf("Remapped = %v", res.Report.Remapped)
	}
	if len(res.Edges) != 1 {
		t.Fatalf("got %d edges, want 1", len(res.Edges))
	}
	e := res.Edges[0]
	if e.Source != in.ID || e.Target != llm.ID {
		t.Errorf("edge = %s -> %s, want %s -> %s", e.Source, e.Target, in.ID, llm.ID)
	}
	if e.ID != in.ID+"-"+llm.ID {
		t.Errorf("edge id = %q", e.ID)
	}
	content, _ := json.Marshal(llm.Messages[0].Content)
	want := `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Summarize {{input.result}}"}]}]}`
	if string(content) != want {
		t.Errorf("message content = %s", content)
	}
}

func TestDanglingEdgeDropped(t *testing.T) {
	cand := []candidate.Node{{ID: "a", Kind: workflow.KindInput}}
	edges := []candidate.Edge{
		{Source: "a", Target: "ghost"},
		{Source: "a", Target: "existing"},
	}
	res := draftEngine().Merge(cand, edges, []workflow.Node{{ID: "existing"}}, nil)

	if len(res.Edges) != 1 || res.Edges[0].Target != "existing" {
		t.Errorf("edges = %+v", res.Edges)
	}
	if len(res.Report.DroppedEdges) != 1 || res.Report.DroppedEdges[0].Edge.Target != "ghost" {
		t.Errorf("DroppedEdges = %+v", res.Report.DroppedEdges)
	}
}

func TestDuplicateSuppliedEdgeIDs(t *testing.T) {
	cand := []candidate.Node{{ID: "a", Kind: workflow.KindInput}, {ID: "b", Kind: workflow.KindOutput}}
	edges := []candidate.Edge{
		{ID: "e1", Source: "a", Target: "b"},
		{ID: "e1", Source: "b", Target: "a"},
	}
	existingEdges := []workflow.Edge{{ID: "e1", Source: "x", Target: "y"}}

	engines := map[string]*Engine{
		"sequence": draftEngine(),
		"constant": NewEngine(materialize.ModeDraftMerge, WithIDGenerator(func() string { return "deadbeef" })),
	}
	for name, e := range engines {
		t.Run(name, func(t *testing.T) {
			res := e.Merge(cand, edges, nil, existingEdges)
			if len(res.Edges) != 2 {
				t.Fatalf("got %d edges", len(res.Edges))
			}
			x, y := res.Edges[0].ID, res.Edges[1].ID
			if x == "e1" || y == "e1" || x == y {
				t.Errorf("edge ids = %q, %q; want two distinct ids other than e1", x, y)
			}
		})
	}
}

func TestEdgeHandlesPreserved(t *testing.T) {
	cand := []candidate.Node{{ID: "c", Kind: workflow.KindCondition}, {ID: "o", Kind: workflow.KindOutput}}
	edges := []candidate.Edge{{Source: "c", Target: "o", SourceHandle: "if", TargetHandle: "in", Label: "yes"}}
	res := draftEngine().Merge(cand, edges, nil, nil)
	e := res.Edges[0]
	if e.SourceHandle != "if" || e.TargetHandle != "in" || e.Label != "yes" {
		t.Errorf("edge = %+v", e)
	}
}

func TestSelfLoopKept(t *testing.T) {
	cand := []candidate.Node{{ID: "a", Kind: workflow.KindLLM}}
	res := draftEngine().Merge(cand, []candidate.Edge{{Source: "a", Target: "a"}}, nil, nil)
	if len(res.Edges) != 1 || !res.Edges[0].IsSelfLoop() {
		t.Errorf("edges = %+v", res.Edges)
	}
}

func TestReferenceConsistency(t *testing.T) {
	cand := []candidate.Node{
		{ID: "input", Kind: workflow.KindInput},
		{ID: "llm", Kind: workflow.KindLLM},
		{ID: "fetch", Kind: workflow.KindHTTP, Config: map[string]any{
			"url":     map[string]any{"nodeId": "input", "path": []any{"url"}},
			"headers": []any{map[string]any{"key": "X", "value": map[string]any{"nodeId": "llm", "path": []any{"h"}}}},
			"query":   []any{map[string]any{"key": "q", "value": map[string]any{"nodeId": "input", "path": []any{"q"}}}},
			"body":    map[string]any{"nodeId": "llm", "path": []any{"text"}},
		}},
		{ID: "out", Kind: workflow.KindOutput, Config: map[string]any{
			"outputData": []any{map[string]any{"key": "r", "sourceNodeId": "fetch", "sourcePath": []any{"body"}}},
		}},
	}
	existing := []workflow.Node{{ID: "input"}, {ID: "llm"}, {ID: "fetch"}}
	res := draftEngine().Merge(cand, nil, existing, nil)

	for _, n := range res.Nodes {
		for _, r := range n.Refs() {
			target := res.IDMap[candidateOf(res, r.Ref.NodeID)]
			if r.Ref.NodeID != target {
				t.Errorf("%s points at %q", r, r.Ref.NodeID)
			}
			if slices.Contains([]string{"input", "llm", "fetch"}, r.Ref.NodeID) {
				t.Errorf("%s still points at a pre-existing node", r)
			}
		}
	}
	if len(res.Report.Unresolved) != 0 {
		t.Errorf("Unresolved = %v", res.Report.Unresolved)
	}
}

// candidateOf finds the candidate id that was mapped to final.
func candidateOf(res *Result, final string) string {
	for c, f := range res.IDMap {
		if f == final {
			return c
		}
	}
	return ""
}

func TestUnresolvedReferenceReported(t *testing.T) {
	cand := []candidate.Node{
		{ID: "out", Kind: workflow.KindOutput, Config: map[string]any{
			"outputData": []any{
				map[string]any{"key": "a", "source": map[string]any{"nodeId": "ghost", "path": []any{}}},
				map[string]any{"key": "b", "source": map[string]any{"nodeId": "existing", "path": []any{}}},
			},
		}},
	}
	res := draftEngine().Merge(cand, nil, []workflow.Node{{ID: "existing"}}, nil)
	if len(res.Report.Unresolved) != 1 || res.Report.Unresolved[0].Ref.NodeID != "ghost" {
		t.Errorf("Unresolved = %v", res.Report.Unresolved)
	}
	if res.Nodes[0].OutputData[0].Source.NodeID != "ghost" {
		t.Error("unresolved reference was not left in place")
	}
}

func TestDefaultOutputSchema(t *testing.T) {
	res := draftEngine().Merge([]candidate.Node{{ID: "a", Kind: workflow.KindNote}, {ID: "b", Kind: workflow.KindNote}}, nil, nil, nil)
	for _, n := range res.Nodes {
		if n.OutputSchema == nil || n.OutputSchema["type"] != "object" {
			t.Errorf("%s outputSchema = %v", n.ID, n.OutputSchema)
		}
	}
	res.Nodes[0].OutputSchema["type"] = "changed"
	if res.Nodes[1].OutputSchema["type"] != "object" {
		t.Error("output schemas are shared between nodes")
	}
}

func TestDuplicateAndInvalidNodesSkipped(t *testing.T) {
	cand := []candidate.Node{
		{ID: "a", Kind: workflow.KindInput},
		{ID: "a", Kind: workflow.KindLLM},
		{ID: "b", Kind: "loop"},
	}
	res := draftEngine().Merge(cand, nil, nil, nil)
	if len(res.Nodes) != 1 || res.Nodes[0].Kind != workflow.KindInput {
		t.Errorf("nodes = %+v", res.Nodes)
	}
	if !slices.Equal(res.Report.SkippedNodes, []string{"a", "b"}) {
		t.Errorf("SkippedNodes = %v", res.Report.SkippedNodes)
	}
}

func TestInvariants(t *testing.T) {
	existingNodes := []workflow.Node{{ID: "input"}, {ID: "llm"}, {ID: "out"}}
	existingEdges := []workflow.Edge{{ID: "input-llm", Source: "input", Target: "llm"}, {ID: "e1"}}
	cand := []candidate.Node{
		{ID: "input", Kind: workflow.KindInput},
		{ID: "llm", Kind: workflow.KindLLM},
		{ID: "", Kind: workflow.KindNote},
		{ID: "", Kind: workflow.KindNote},
		{ID: "out", Kind: workflow.KindOutput},
	}
	edges := []candidate.Edge{
		{Source: "input", Target: "llm"},
		{Source: "input", Target: "llm"},
		{ID: "e1", Source: "llm", Target: "out"},
		{Source: "out", Target: "nowhere"},
	}
	res := NewEngine(materialize.ModeDraftMerge).Merge(cand, edges, existingNodes, existingEdges)

	nodeIDs := map[string]bool{}
	for _, n := range existingNodes {
		nodeIDs[n.ID] = true
	}
	for _, n := range res.Nodes {
		if nodeIDs[n.ID] {
			t.Errorf("duplicate node id %q", n.ID)
		}
		nodeIDs[n.ID] = true
	}
	edgeIDs := map[string]bool{}
	for _, e := range existingEdges {
		edgeIDs[e.ID] = true
	}
	for _, e := range res.Edges {
		if edgeIDs[e.ID] {
			t.Errorf("duplicate edge id %q", e.ID)
		}
		edgeIDs[e.ID] = true
		if !nodeIDs[e.Source] || !nodeIDs[e.Target] {
			t.Errorf("dangling edge %+v", e)
		}
	}
	if len(res.Nodes) != 5 || len(res.Edges) != 3 {
		t.Errorf("got %d nodes, %d edges; want 5, 3", len(res.Nodes), len(res.Edges))
	}
}

func TestModes(t *testing.T) {
	p := &candidate.Payload{Name: "wf", Description: "d", Nodes: []candidate.Node{{ID: "a", Kind: workflow.KindInput}}}

	draft := DraftMerge(p, workflow.NewDocument("doc", "doc"))
	if !draft.Nodes[0].IsDraft() {
		t.Error("DraftMerge did not produce a draft")
	}

	im := CommitImport(p, []string{"a"})
	n := im.Nodes[0]
	if !n.GeneratedByAI || n.Runtime.IsNew {
		t.Errorf("CommitImport provenance = %v/%v", n.GeneratedByAI, n.Runtime.IsNew)
	}
	if n.ID == "a" {
		t.Error("CommitImport ignored existing node ids")
	}
	doc := im.Document("new")
	if doc.Name != "wf" || doc.Description != "d" || len(doc.Nodes) != 1 {
		t.Errorf("Document() = %+v", doc)
	}
}

func TestInputsNotMutated(t *testing.T) {
	cfg := map[string]any{"url": map[string]any{"nodeId": "a", "path": []any{"x"}}}
	cand := []candidate.Node{{ID: "a", Kind: workflow.KindInput}, {ID: "h", Kind: workflow.KindHTTP, Config: cfg}}
	draftEngine().Merge(cand, nil, []workflow.Node{{ID: "a"}}, nil)
	if cfg["url"].(map[string]any)["nodeId"] != "a" {
		t.Error("candidate config mutated")
	}
	if _, ok := cfg["name"]; ok {
		t.Error("candidate config gained keys")
	}
}

func ExampleEngine_Merge() {
	n := 0
	gen := func() string { n++; return fmt.Sprintf("%08d", n) }
	engine := NewEngine(materialize.ModeDraftMerge, WithIDGenerator(gen))

	res := engine.Merge(
		[]candidate.Node{{ID: "input", Kind: workflow.KindInput}, {ID: "llm", Kind: workflow.KindLLM}},
		[]candidate.Edge{{Source: "input", Target: "llm"}, {Source: "llm", Target: "missing"}},
		[]workflow.Node{{ID: "input", Kind: workflow.KindInput}},
		nil,
	)
	for _, node := range res.Nodes {
		fmt.Println(node.ID, node.Kind, node.IsDraft())
	}
	for _, e := range res.Edges {
		fmt.Println(e.ID)
	}
	fmt.Println(len(res.Report.DroppedEdges), "dropped")
	// Output:
	// input_00000001 input true
	// llm llm true
	// input_00000001-llm
	// 1 dropped
}
