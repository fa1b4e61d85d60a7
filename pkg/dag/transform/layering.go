package transform

import "github.com/matzehuels/flowmerge/pkg/dag"

// AssignLayers ranks every node by the longest path reaching it: a node
// without parents gets row 0, any other node one more than its deepest
// parent. It returns the number of rows. Existing rows are overwritten.
//
// The graph must be acyclic; run [BreakCycles] first. On a cycle the
// recursion stops at the node being ranked, so the result is still finite
// but arbitrary.
func AssignLayers(g *dag.DAG) int {
	rows := make(map[string]int, g.NodeCount())
	ranking := make(map[string]bool)

	var rank func(id string) int
	rank = func(id string) int {
		if r, ok := rows[id]; ok {
			return r
		}
		if ranking[id] {
			return -1
		}
		ranking[id] = true
		r := 0
		for _, p := range g.Parents(id) {
			r = max(r, rank(p)+1)
		}
		delete(ranking, id)
		rows[id] = r
		return r
	}

	depth := 0
	for _, n := range g.Nodes() {
		depth = max(depth, rank(n.ID)+1)
	}
	g.SetRows(rows)
	return depth
}
