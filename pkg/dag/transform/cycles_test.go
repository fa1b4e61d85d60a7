package transform

import (
	"testing"

	"github.com/matzehuels/flowmerge/pkg/dag"
)

func TestBreakCycles(t *testing.T) {
	tests := []struct {
		name      string
		ids       []string
		edges     [][2]string
		wantBack  int
		wantEdges int
	}{
		{"empty", nil, nil, 0, 0},
		{"chain", []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}}, 0, 2},
		{
			name:      "diamond",
			ids:       []string{"a", "b", "c", "d"},
			edges:     [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}},
			wantBack:  0,
			wantEdges: 4,
		},
		// b -> a duplicates a -> b once reversed, so it is dropped.
		{"two-node loop", []string{"a", "b"}, [][2]string{{"a", "b"}, {"b", "a"}}, 1, 1},
		{"self loop", []string{"a"}, [][2]string{{"a", "a"}}, 1, 0},
		{
			name:      "retry loop is reversed",
			ids:       []string{"in", "draft", "check", "out"},
			edges:     [][2]string{{"in", "draft"}, {"draft", "check"}, {"check", "draft"}, {"check", "out"}},
			wantBack:  1,
			wantEdges: 3,
		},
		{
			name:      "triangle",
			ids:       []string{"a", "b", "c"},
			edges:     [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}},
			wantBack:  1,
			wantEdges: 3,
		},
		{
			name:      "two separate loops",
			ids:       []string{"a", "b", "c", "d"},
			edges:     [][2]string{{"a", "b"}, {"b", "a"}, {"c", "d"}, {"d", "c"}},
			wantBack:  2,
			wantEdges: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := build(tt.ids, tt.edges)
			back := BreakCycles(g)
			if len(back) != tt.wantBack {
				t.Errorf("BreakCycles() changed %v, want %d edges", back, tt.wantBack)
			}
			edges := 0
			for _, n := range g.Nodes() {
				edges += len(g.Children(n.ID))
			}
			if edges != tt.wantEdges {
				t.Errorf("edge count = %d, want %d", edges, tt.wantEdges)
			}
			if err := g.Validate(); err != nil {
				t.Errorf("graph still cyclic: %v", err)
			}
			if again := BreakCycles(g); len(again) != 0 {
				t.Errorf("second pass changed %v", again)
			}
		})
	}
}

func TestBreakCyclesKeepsLoopTargetFirst(t *testing.T) {
	g := build([]string{"in", "draft", "check"}, [][2]string{{"in", "draft"}, {"draft", "check"}, {"check", "draft"}})
	back := BreakCycles(g)
	if len(back) != 1 || back[0] != (dag.Edge{From: "check", To: "draft"}) {
		t.Fatalf("back edges = %v", back)
	}
	AssignLayers(g)
	draft, _ := g.Node("draft")
	check, _ := g.Node("check")
	if draft.Row >= check.Row {
		t.Errorf("draft row %d should precede check row %d", draft.Row, check.Row)
	}
}
