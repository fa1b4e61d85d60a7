package transform

import (
	"slices"

	"github.com/matzehuels/flowmerge/pkg/dag"
)

// DefaultSweeps is the number of down/up passes used by [OrderLayers].
const DefaultSweeps = 4

// OrderLayers orders the nodes of each row to reduce edge crossings with the
// barycentre heuristic and returns the ordering keyed by row.
//
// Rows start in insertion order. Each sweep walks down the rows, sorting a
// row by the mean position of its parents in earlier rows, then walks back
// up sorting by the mean position of children in later rows. Nodes without
// neighbours on the reference side keep their position. The ordering with
// the fewest crossings seen is returned. Run [AssignLayers] first.
func OrderLayers(g *dag.DAG, sweeps int) map[int][]string {
	rowIDs := g.RowIDs()
	orders := make(map[int][]string, len(rowIDs))
	for _, r := range rowIDs {
		orders[r] = dag.NodeIDs(g.NodesInRow(r))
	}

	if len(rowIDs) < 2 {
		return orders
	}

	best := cloneOrders(orders)
	bestCrossings := dag.CountCrossings(g, orders)

	for i := 0; i < sweeps && bestCrossings > 0; i++ {
		for _, r := range rowIDs[1:] {
			sortByBarycentre(orders, r, g.Parents, positions(orders))
		}
		for j := len(rowIDs) - 2; j >= 0; j-- {
			sortByBarycentre(orders, rowIDs[j], g.Children, positions(orders))
		}
		if c := dag.CountCrossings(g, orders); c < bestCrossings {
			best, bestCrossings = cloneOrders(orders), c
		}
	}
	return best
}

func sortByBarycentre(orders map[int][]string, row int, neighbours func(string) []string, pos map[string]float64) {
	ids := orders[row]
	keys := make(map[string]float64, len(ids))
	for i, id := range ids {
		sum, n := 0.0, 0
		for _, nb := range neighbours(id) {
			if p, ok := pos[nb]; ok && nb != id {
				sum += p
				n++
			}
		}
		if n == 0 {
			keys[id] = float64(i)
			continue
		}
		keys[id] = sum / float64(n)
	}
	slices.SortStableFunc(ids, func(a, b string) int {
		switch {
		case keys[a] < keys[b]:
			return -1
		case keys[a] > keys[b]:
			return 1
		}
		return 0
	})
}

// positions maps every node to its index within its row.
func positions(orders map[int][]string) map[string]float64 {
	pos := make(map[string]float64)
	for _, ids := range orders {
		for i, id := range ids {
			pos[id] = float64(i)
		}
	}
	return pos
}

func cloneOrders(orders map[int][]string) map[int][]string {
	out := make(map[int][]string, len(orders))
	for r, ids := range orders {
		out[r] = slices.Clone(ids)
	}
	return out
}
