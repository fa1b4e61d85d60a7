package transform_test

import (
	"fmt"

	"github.com/matzehuels/flowmerge/pkg/dag"
	"github.com/matzehuels/flowmerge/pkg/dag/transform"
)

func ExampleAssignLayers() {
	g := dag.New()
	_ = g.AddNode(dag.Node{ID: "input"})
	_ = g.AddNode(dag.Node{ID: "search"})
	_ = g.AddNode(dag.Node{ID: "summarize"})
	_ = g.AddNode(dag.Node{ID: "output"})
	_ = g.AddEdge(dag.Edge{From: "input", To: "search"})
	_ = g.AddEdge(dag.Edge{From: "search", To: "summarize"})
	_ = g.AddEdge(dag.Edge{From: "input", To: "summarize"})
	_ = g.AddEdge(dag.Edge{From: "summarize", To: "output"})

	transform.AssignLayers(g)

	for _, row := range g.RowIDs() {
		fmt.Println(row, dag.NodeIDs(g.NodesInRow(row)))
	}
	// Output:
	// 0 [input]
	// 1 [search]
	// 2 [summarize]
	// 3 [output]
}

func ExampleBreakCycles() {
	g := dag.New()
	_ = g.AddNode(dag.Node{ID: "a"})
	_ = g.AddNode(dag.Node{ID: "b"})
	_ = g.AddEdge(dag.Edge{From: "a", To: "b"})
	_ = g.AddEdge(dag.Edge{From: "b", To: "a"})
	_ = g.AddEdge(dag.Edge{From: "b", To: "b"})

	fmt.Println("changed:", transform.BreakCycles(g))
	fmt.Println("acyclic:", g.Validate() == nil)
	// Output:
	// changed: [{b a} {b b}]
	// acyclic: true
}
