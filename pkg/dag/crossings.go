package dag

import (
	"maps"
	"slices"
)

// CountCrossings sums [CountLayerCrossings] over every pair of consecutive
// rows in orders. Edges that skip a row are ignored.
func CountCrossings(g *DAG, orders map[int][]string) int {
	total := 0
	rows := slices.Sorted(maps.Keys(orders))
	for i := 1; i < len(rows); i++ {
		if rows[i] != rows[i-1]+1 {
			continue
		}
		total += CountLayerCrossings(g, orders[rows[i-1]], orders[rows[i]])
	}
	return total
}

// CountLayerCrossings counts pairs of edges from upper to lower that cross,
// that is edges (u1,v1) and (u2,v2) with pos(u1) < pos(u2) and
// pos(v1) > pos(v2). Workflow rows are narrow, so every pair is compared.
func CountLayerCrossings(g *DAG, upper, lower []string) int {
	lowerPos := PosMap(lower)

	var spans [][2]int
	for i, id := range upper {
		for _, child := range g.Children(id) {
			if j, ok := lowerPos[child]; ok {
				spans = append(spans, [2]int{i, j})
			}
		}
	}

	n := 0
	for a := range spans {
		for b := a + 1; b < len(spans); b++ {
			du := spans[a][0] - spans[b][0]
			dl := spans[a][1] - spans[b][1]
			if du*dl < 0 {
				n++
			}
		}
	}
	return n
}
