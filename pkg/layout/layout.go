// Package layout assigns canvas positions to workflow nodes.
//
// A [Layouter] maps node ids to top-left positions. Two implementations
// are provided: [Graphviz], which runs the dot engine, and [Layered], a
// pure-Go longest-path layout used when Graphviz is unavailable or fails.
//
// [Apply] runs a layouter over a full graph and writes the positions back.
// Layout problems never lose nodes: any node the layouter did not place
// keeps the position it had before.
package layout

import (
	"context"
	"fmt"
	"strings"

	"github.com/matzehuels/flowmerge/pkg/errors"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// Directions.
const (
	DirectionLR = "LR"
	DirectionTB = "TB"
)

// Defaults match the editor's node box and spacing.
const (
	DefaultNodeWidth  = 288.0
	DefaultNodeHeight = 160.0
	DefaultNodeSep    = 80.0
	DefaultRankSep    = 140.0
)

// Layouter computes positions for a graph.
type Layouter interface {
	Layout(ctx context.Context, nodes []workflow.Node, edges []workflow.Edge) (map[string]workflow.Position, error)
}

// Func adapts a function to [Layouter].
type Func func(ctx context.Context, nodes []workflow.Node, edges []workflow.Edge) (map[string]workflow.Position, error)

// Layout calls f.
func (f Func) Layout(ctx context.Context, nodes []workflow.Node, edges []workflow.Edge) (map[string]workflow.Position, error) {
	return f(ctx, nodes, edges)
}

// Options is the geometry shared by all layouters. Sizes are in canvas
// pixels.
type Options struct {
	Direction  string  `json:"direction"`
	NodeWidth  float64 `json:"nodeWidth"`
	NodeHeight float64 `json:"nodeHeight"`
	NodeSep    float64 `json:"nodeSep"`
	RankSep    float64 `json:"rankSep"`
}

// DefaultOptions returns left-to-right layout with the editor's box size.
func DefaultOptions() Options {
	return Options{
		Direction:  DirectionLR,
		NodeWidth:  DefaultNodeWidth,
		NodeHeight: DefaultNodeHeight,
		NodeSep:    DefaultNodeSep,
		RankSep:    DefaultRankSep,
	}
}

// WithDefaults fills zero fields from [DefaultOptions].
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.Direction == "" {
		o.Direction = d.Direction
	}
	o.Direction = strings.ToUpper(o.Direction)
	if o.NodeWidth <= 0 {
		o.NodeWidth = d.NodeWidth
	}
	if o.NodeHeight <= 0 {
		o.NodeHeight = d.NodeHeight
	}
	if o.NodeSep <= 0 {
		o.NodeSep = d.NodeSep
	}
	if o.RankSep <= 0 {
		o.RankSep = d.RankSep
	}
	return o
}

// Validate checks the direction.
func (o Options) Validate() error {
	switch strings.ToUpper(o.Direction) {
	case DirectionLR, DirectionTB, "":
		return nil
	}
	return errors.New(errors.ErrCodeInvalidConfig, "layout direction must be LR or TB, got %q", o.Direction)
}

// Key is a stable string form used in cache keys.
func (o Options) Key() string {
	o = o.WithDefaults()
	return fmt.Sprintf("%s:%g:%g:%g:%g", o.Direction, o.NodeWidth, o.NodeHeight, o.NodeSep, o.RankSep)
}

func (o Options) horizontal() bool { return o.Direction != DirectionTB }

// Apply lays out the graph and returns copies of nodes with positions set.
// Nodes the layouter did not place keep their prior position. When the
// layouter fails, every node keeps its prior position and the error is
// returned for the caller to log.
func Apply(ctx context.Context, l Layouter, nodes []workflow.Node, edges []workflow.Edge) ([]workflow.Node, error) {
	out := make([]workflow.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	if len(nodes) == 0 {
		return out, nil
	}

	positions, err := l.Layout(ctx, nodes, edges)
	if err != nil {
		return out, errors.Wrap(errors.ErrCodeLayoutFailed, err, "layout %d nodes", len(nodes))
	}
	for i := range out {
		if p, ok := positions[out[i].ID]; ok {
			out[i].Position = &workflow.Position{X: p.X, Y: p.Y}
		}
	}
	return out, nil
}

// Fallback tries each layouter in turn and returns the first success.
type Fallback []Layouter

// Layout implements [Layouter].
func (f Fallback) Layout(ctx context.Context, nodes []workflow.Node, edges []workflow.Edge) (map[string]workflow.Position, error) {
	var errs []string
	for _, l := range f {
		positions, err := l.Layout(ctx, nodes, edges)
		if err == nil {
			return positions, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err.Error())
	}
	if len(errs) == 0 {
		return nil, errors.New(errors.ErrCodeLayoutFailed, "no layouter configured")
	}
	return nil, errors.New(errors.ErrCodeLayoutFailed, "all layouters failed: %s", strings.Join(errs, "; "))
}

// New returns the layouter for an engine name: "graphviz" (with the
// layered layout as fallback) or "layered".
func New(engine string, opts Options) (Layouter, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(engine) {
	case "", "graphviz", "dot":
		return Fallback{NewGraphviz(opts), NewLayered(opts)}, nil
	case "layered":
		return NewLayered(opts), nil
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown layout engine %q (want graphviz or layered)", engine)
}
