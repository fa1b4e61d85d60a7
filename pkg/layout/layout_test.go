package layout

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/matzehuels/flowmerge/pkg/errors"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

func chain(ids ...string) ([]workflow.Node, []workflow.Edge) {
	nodes := make([]workflow.Node, len(ids))
	var edges []workflow.Edge
	for i, id := range ids {
		nodes[i] = workflow.Node{ID: id, Kind: workflow.KindLLM}
		if i > 0 {
			edges = append(edges, workflow.Edge{ID: fmt.Sprintf("e%d", i), Source: ids[i-1], Target: id})
		}
	}
	return nodes, edges
}

var failing = Func(func(context.Context, []workflow.Node, []workflow.Edge) (map[string]workflow.Position, error) {
	return nil, fmt.Errorf("engine crashed")
})

func TestLayeredChainLR(t *testing.T) {
	nodes, edges := chain("a", "b", "c")
	pos, err := NewLayered(Options{}).Layout(context.Background(), nodes, edges)
	if err != nil {
		t.Fatal(err)
	}
	step := DefaultNodeWidth + DefaultRankSep
	for i, id := range []string{"a", "b", "c"} {
		want := workflow.Position{X: float64(i) * step, Y: 0}
		if pos[id] != want {
			t.Errorf("%s = %+v, want %+v", id, pos[id], want)
		}
	}
}

func TestLayeredTB(t *testing.T) {
	nodes, edges := chain("a", "b")
	pos, _ := NewLayered(Options{Direction: "tb"}).Layout(context.Background(), nodes, edges)
	if pos["b"].X != 0 || pos["b"].Y != DefaultNodeHeight+DefaultRankSep {
		t.Errorf("b = %+v", pos["b"])
	}
}

func TestLayeredCentresNarrowRanks(t *testing.T) {
	nodes := []workflow.Node{{ID: "root"}, {ID: "x"}, {ID: "y"}}
	edges := []workflow.Edge{{Source: "root", Target: "x"}, {Source: "root", Target: "y"}}
	pos, _ := NewLayered(DefaultOptions()).Layout(context.Background(), nodes, edges)

	slot := DefaultNodeHeight + DefaultNodeSep
	if pos["root"].Y != slot/2 {
		t.Errorf("root = %+v, want centred at %v", pos["root"], slot/2)
	}
	if pos["x"].Y == pos["y"].Y {
		t.Error("siblings overlap")
	}
}

func TestLayeredHandlesCycles(t *testing.T) {
	nodes, edges := chain("a", "b", "c")
	edges = append(edges, workflow.Edge{Source: "c", Target: "a"}, workflow.Edge{Source: "b", Target: "b"})
	pos, err := NewLayered(DefaultOptions()).Layout(context.Background(), nodes, edges)
	if err != nil {
		t.Fatal(err)
	}
	if len(pos) != 3 {
		t.Errorf("placed %d nodes, want 3", len(pos))
	}
	if !(pos["a"].X < pos["b"].X && pos["b"].X < pos["c"].X) {
		t.Errorf("positions = %v", pos)
	}
}

func TestLayeredDeterministic(t *testing.T) {
	nodes, edges := chain("a", "b", "c", "d")
	edges = append(edges, workflow.Edge{Source: "a", Target: "d"})
	l := NewLayered(DefaultOptions())
	first, _ := l.Layout(context.Background(), nodes, edges)
	for range 5 {
		again, _ := l.Layout(context.Background(), nodes, edges)
		for id, p := range first {
			if again[id] != p {
				t.Fatalf("%s moved from %+v to %+v", id, p, again[id])
			}
		}
	}
}

func TestApplyKeepsPriorPositionOnFailure(t *testing.T) {
	nodes := []workflow.Node{{ID: "a", Position: &workflow.Position{X: 5, Y: 7}}, {ID: "b"}}
	out, err := Apply(context.Background(), failing, nodes, nil)
	if !errors.Is(err, errors.ErrCodeLayoutFailed) {
		t.Errorf("error = %v, want LAYOUT_FAILED", err)
	}
	if len(out) != 2 || *out[0].Position != (workflow.Position{X: 5, Y: 7}) || out[1].Position != nil {
		t.Errorf("out = %+v", out)
	}
}

func TestApplyKeepsUnplacedNodes(t *testing.T) {
	partial := Func(func(context.Context, []workflow.Node, []workflow.Edge) (map[string]workflow.Position, error) {
		return map[string]workflow.Position{"a": {X: 1, Y: 2}}, nil
	})
	nodes := []workflow.Node{{ID: "a"}, {ID: "b", Position: &workflow.Position{X: 9, Y: 9}}}
	out, err := Apply(context.Background(), partial, nodes, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Position.X != 1 || out[1].Position.X != 9 {
		t.Errorf("out = %+v, %+v", out[0].Position, out[1].Position)
	}
	if nodes[0].Position != nil {
		t.Error("Apply mutated its input")
	}
}

func TestFallback(t *testing.T) {
	nodes, edges := chain("a", "b")
	pos, err := Fallback{failing, NewLayered(DefaultOptions())}.Layout(context.Background(), nodes, edges)
	if err != nil || len(pos) != 2 {
		t.Errorf("Fallback = %v, %v", pos, err)
	}
	if _, err := (Fallback{failing}).Layout(context.Background(), nodes, edges); err == nil {
		t.Error("Fallback with only failing layouters succeeded")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		engine  string
		dir     string
		wantErr bool
	}{
		{"graphviz", "LR", false},
		{"layered", "TB", false},
		{"", "", false},
		{"force", "LR", true},
		{"layered", "diagonal", true},
	}
	for _, tt := range tests {
		t.Run(tt.engine+"/"+tt.dir, func(t *testing.T) {
			_, err := New(tt.engine, Options{Direction: tt.dir})
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%q, %q) error = %v, wantErr %v", tt.engine, tt.dir, err, tt.wantErr)
			}
		})
	}
}

func TestOptionsKey(t *testing.T) {
	if (Options{}).Key() != DefaultOptions().Key() {
		t.Error("zero options and defaults differ in key")
	}
	if (Options{Direction: "TB"}).Key() == DefaultOptions().Key() {
		t.Error("direction not part of key")
	}
}

func TestParsePositions(t *testing.T) {
	out := `digraph G {
	graph [bb="0,0,716,160",
		nodesep=1.1111,
		rankdir=LR,
		ranksep=1.9444
	];
	node [fixedsize=true,
		height=2.2222,
		label="",
		shape=box,
		width=4
	];
	n0	[height=2.2222,
		pos="144,80",
		width=4];
	n1	[height=2.2222,
		pos="572,80",
		width=4];
	n0 -> n1	[pos="e,427.83,80 288.17,80 328.53,80 373.5,80 417.6,80"];
}
`
	centres, bb, err := parsePositions(out)
	if err != nil {
		t.Fatal(err)
	}
	if bb != (workflow.Position{X: 0, Y: 160}) {
		t.Errorf("bb = %+v", bb)
	}
	if len(centres) != 2 || centres["n0"] != (workflow.Position{X: 144, Y: 80}) || centres["n1"].X != 572 {
		t.Errorf("centres = %v", centres)
	}
}

func TestParsePositionsWithoutBoundingBox(t *testing.T) {
	if _, _, err := parsePositions("digraph G {\n\tn0 [pos=\"1,2\"];\n}\n"); err == nil {
		t.Error("missing bb accepted")
	}
}

func TestGraphvizLayout(t *testing.T) {
	nodes, edges := chain("input", "llm \"quoted\"", "out")
	pos, err := NewGraphviz(DefaultOptions()).Layout(context.Background(), nodes, edges)
	if err != nil {
		t.Fatalf("Layout() error = %v", err)
	}
	if len(pos) != 3 {
		t.Fatalf("placed %d nodes, want 3", len(pos))
	}
	a, b, c := pos["input"], pos["llm \"quoted\""], pos["out"]
	if !(a.X < b.X && b.X < c.X) {
		t.Errorf("LR chain not left to right: %v %v %v", a, b, c)
	}
	if math.Abs(a.X) > 1 || math.Abs(a.Y) > 1 {
		t.Errorf("first node at %+v, want the origin", a)
	}
	if gap := b.X - a.X; gap < DefaultNodeWidth+DefaultRankSep-1 {
		t.Errorf("rank gap = %v, want at least %v", gap, DefaultNodeWidth+DefaultRankSep)
	}
}
