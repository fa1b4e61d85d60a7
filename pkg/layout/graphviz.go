package layout

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// pointsPerInch converts canvas pixels (treated as points) to the inches
// Graphviz uses for sizes and separations.
const pointsPerInch = 72.0

// Graphviz lays out graphs with the dot engine.
type Graphviz struct {
	opts Options
}

// NewGraphviz creates a Graphviz layouter.
func NewGraphviz(opts Options) *Graphviz {
	return &Graphviz{opts: opts.WithDefaults()}
}

// Layout implements [Layouter]. Nodes are passed to Graphviz under
// synthetic names so arbitrary ids need no quoting.
func (g *Graphviz) Layout(ctx context.Context, nodes []workflow.Node, edges []workflow.Edge) (map[string]workflow.Position, error) {
	names := make(map[string]string, len(nodes))
	ids := make(map[string]string, len(nodes))
	for i, n := range nodes {
		if _, dup := names[n.ID]; dup {
			continue
		}
		name := "n" + strconv.Itoa(i)
		names[n.ID] = name
		ids[name] = n.ID
	}

	dot := g.toDOT(nodes, edges, names)
	out, err := renderDOT(ctx, dot)
	if err != nil {
		return nil, err
	}

	centres, bb, err := parsePositions(out)
	if err != nil {
		return nil, err
	}

	o := g.opts
	positions := make(map[string]workflow.Position, len(centres))
	for name, c := range centres {
		id, ok := ids[name]
		if !ok {
			continue
		}
		positions[id] = workflow.Position{
			X: c.X - bb.X - o.NodeWidth/2,
			Y: (bb.Y - c.Y) - o.NodeHeight/2,
		}
	}
	return positions, nil
}

func (g *Graphviz) toDOT(nodes []workflow.Node, edges []workflow.Edge, names map[string]string) string {
	o := g.opts
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", o.Direction)
	fmt.Fprintf(&buf, "  nodesep=%.4f;\n", o.NodeSep/pointsPerInch)
	fmt.Fprintf(&buf, "  ranksep=%.4f;\n", o.RankSep/pointsPerInch)
	fmt.Fprintf(&buf, "  node [shape=box, fixedsize=true, label=\"\", width=%.4f, height=%.4f];\n",
		o.NodeWidth/pointsPerInch, o.NodeHeight/pointsPerInch)
	buf.WriteString("\n")

	for _, n := range nodes {
		if name := names[n.ID]; name != "" {
			fmt.Fprintf(&buf, "  %s;\n", name)
		}
	}
	buf.WriteString("\n")
	for _, e := range edges {
		from, to := names[e.Source], names[e.Target]
		if from == "" || to == "" {
			continue
		}
		fmt.Fprintf(&buf, "  %s -> %s;\n", from, to)
	}
	buf.WriteString("}\n")
	return buf.String()
}

// renderDOT runs the dot layout and returns the laid-out graph in DOT form.
func renderDOT(ctx context.Context, dot string) (string, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return "", fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	graph, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return "", fmt.Errorf("parse DOT: %w", err)
	}
	defer graph.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.XDOT, &buf); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	return buf.String(), nil
}

var (
	stmtRe = regexp.MustCompile(`(?m)^\s*(\w+)\s*\[([^\]]*)\]`)
	attrRe = regexp.MustCompile(`(\w+)=("(?:[^"\\]|\\.)*"|[^,\s\]]+)`)
)

// parsePositions reads node centres and the top-right corner of the
// bounding box from laid-out DOT output. Coordinates are in points with y
// growing upwards; bb carries (llx, ury).
func parsePositions(out string) (map[string]workflow.Position, workflow.Position, error) {
	out = strings.ReplaceAll(out, "\\\n", "")

	var bb workflow.Position
	haveBB := false
	centres := make(map[string]workflow.Position)
	for _, m := range stmtRe.FindAllStringSubmatch(out, -1) {
		name, attrs := m[1], attributes(m[2])
		switch name {
		case "graph":
			if v, ok := attrs["bb"]; ok {
				nums, err := floats(v, 4)
				if err != nil {
					return nil, bb, fmt.Errorf("bad bounding box %q: %w", v, err)
				}
				bb = workflow.Position{X: nums[0], Y: nums[3]}
				haveBB = true
			}
		case "node", "edge":
		default:
			if v, ok := attrs["pos"]; ok {
				nums, err := floats(v, 2)
				if err != nil {
					return nil, bb, fmt.Errorf("bad position %q for %s: %w", v, name, err)
				}
				centres[name] = workflow.Position{X: nums[0], Y: nums[1]}
			}
		}
	}
	if !haveBB {
		return nil, bb, fmt.Errorf("graphviz output has no bounding box")
	}
	return centres, bb, nil
}

func attributes(s string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(s, -1) {
		attrs[m[1]] = strings.Trim(m[2], `"`)
	}
	return attrs
}

func floats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) < n {
		return nil, fmt.Errorf("want %d numbers, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i := range n {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
