package transform

import (
	"slices"
	"testing"

	"github.com/matzehuels/flowmerge/pkg/dag"
)

func build(ids []string, edges [][2]string) *dag.DAG {
	g := dag.New()
	for _, id := range ids {
		_ = g.AddNode(dag.Node{ID: id})
	}
	for _, e := range edges {
		_ = g.AddEdge(dag.Edge{From: e[0], To: e[1]})
	}
	return g
}

func TestAssignLayers(t *testing.T) {
	tests := []struct {
		name  string
		ids   []string
		edges [][2]string
		want  map[string]int
	}{
		{
			name:  "chain",
			ids:   []string{"a", "b", "c"},
			edges: [][2]string{{"a", "b"}, {"b", "c"}},
			want:  map[string]int{"a": 0, "b": 1, "c": 2},
		},
		{
			name:  "longest path wins",
			ids:   []string{"a", "b", "c"},
			edges: [][2]string{{"a", "c"}, {"a", "b"}, {"b", "c"}},
			want:  map[string]int{"a": 0, "b": 1, "c": 2},
		},
		{
			name:  "disconnected nodes stay in row zero",
			ids:   []string{"a", "b", "note"},
			edges: [][2]string{{"a", "b"}},
			want:  map[string]int{"a": 0, "b": 1, "note": 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := build(tt.ids, tt.edges)
			AssignLayers(g)
			for id, row := range tt.want {
				n, _ := g.Node(id)
				if n.Row != row {
					t.Errorf("row(%s) = %d, want %d", id, n.Row, row)
				}
			}
		})
	}
}

func TestOrderLayersRemovesCrossing(t *testing.T) {
	// a -> y, b -> x start crossed in insertion order.
	g := build([]string{"a", "b", "x", "y"}, [][2]string{{"a", "y"}, {"b", "x"}})
	AssignLayers(g)

	orders := OrderLayers(g, DefaultSweeps)

	if c := dag.CountCrossings(g, orders); c != 0 {
		t.Errorf("crossings after OrderLayers = %d, want 0 (orders %v)", c, orders)
	}
	if len(orders[0]) != 2 || len(orders[1]) != 2 {
		t.Errorf("OrderLayers lost nodes: %v", orders)
	}
}

func TestOrderLayersSingleRow(t *testing.T) {
	g := build([]string{"a", "b"}, nil)
	AssignLayers(g)
	orders := OrderLayers(g, DefaultSweeps)
	if !slices.Equal(orders[0], []string{"a", "b"}) {
		t.Errorf("OrderLayers() = %v", orders)
	}
}
