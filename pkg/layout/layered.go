package layout

import (
	"context"

	"github.com/matzehuels/flowmerge/pkg/dag/transform"
	"github.com/matzehuels/flowmerge/pkg/errors"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// Layered is a longest-path layered layout: cycles are broken, nodes are
// ranked by their deepest predecessor, rows are ordered by barycentre and
// each rank is centred on the widest one.
type Layered struct {
	opts   Options
	sweeps int
}

// NewLayered creates a layered layouter.
func NewLayered(opts Options) *Layered {
	return &Layered{opts: opts.WithDefaults(), sweeps: transform.DefaultSweeps}
}

// Layout implements [Layouter].
func (l *Layered) Layout(ctx context.Context, nodes []workflow.Node, edges []workflow.Edge) (map[string]workflow.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g := workflow.BuildDAG(nodes, edges)
	transform.BreakCycles(g)
	if err := g.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeLayoutFailed, err, "rank %d nodes", len(nodes))
	}
	transform.AssignLayers(g)
	orders := transform.OrderLayers(g, l.sweeps)

	widest := 0
	for _, ids := range orders {
		widest = max(widest, len(ids))
	}

	o := l.opts
	rankStep, slotStep := o.NodeWidth+o.RankSep, o.NodeHeight+o.NodeSep
	if !o.horizontal() {
		rankStep, slotStep = o.NodeHeight+o.RankSep, o.NodeWidth+o.NodeSep
	}

	positions := make(map[string]workflow.Position, g.NodeCount())
	for rank, ids := range orders {
		offset := float64(widest-len(ids)) * slotStep / 2
		for i, id := range ids {
			along := float64(rank) * rankStep
			across := offset + float64(i)*slotStep
			if o.horizontal() {
				positions[id] = workflow.Position{X: along, Y: across}
			} else {
				positions[id] = workflow.Position{X: across, Y: along}
			}
		}
	}
	return positions, nil
}
