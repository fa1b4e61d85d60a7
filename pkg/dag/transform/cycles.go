package transform

import "github.com/matzehuels/flowmerge/pkg/dag"

// BreakCycles makes g acyclic and returns the edges it changed, in their
// original direction. Back edges found by depth-first search are reversed
// so both endpoints stay connected; a back edge whose reverse already
// exists, and every self-loop, is dropped instead. The search starts at
// source nodes, then at any node left unvisited, both in insertion order.
//
// A loop back to an earlier step (retry, refine) thus ranks the earlier
// step first, which is how a reader expects it drawn.
func BreakCycles(g *dag.DAG) []dag.Edge {
	state := make(map[string]uint8) // 0 unseen, 1 on stack, 2 done
	var back []dag.Edge

	var visit func(id string)
	visit = func(id string) {
		state[id] = 1
		for _, next := range g.Children(id) {
			switch state[next] {
			case 0:
				visit(next)
			case 1:
				back = append(back, dag.Edge{From: id, To: next})
			}
		}
		state[id] = 2
	}

	for _, n := range g.Sources() {
		if state[n.ID] == 0 {
			visit(n.ID)
		}
	}
	for _, n := range g.Nodes() {
		if state[n.ID] == 0 {
			visit(n.ID)
		}
	}

	for _, e := range back {
		g.RemoveEdge(e.From, e.To)
		if e.From != e.To && !hasEdge(g, e.To, e.From) {
			_ = g.AddEdge(dag.Edge{From: e.To, To: e.From})
		}
	}
	return back
}

func hasEdge(g *dag.DAG, from, to string) bool {
	for _, c := range g.Children(from) {
		if c == to {
			return true
		}
	}
	return false
}
