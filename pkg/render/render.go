// Package render exports workflow documents as Graphviz DOT and SVG.
//
// [DOT] is deterministic: nodes and edges appear in document order, so the
// text is stable enough for golden files and diffs. [SVG] runs the dot
// engine through go-graphviz.
//
// Draft nodes (generated and not yet reviewed) are drawn dashed on a grey
// fill, matching how an editor shows pending suggestions.
package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/flowmerge/pkg/errors"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// Formats accepted by [Export].
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
)

// Options configures DOT output.
type Options struct {
	// Detailed adds the node id and kind under the name.
	Detailed bool
}

// DOT converts a document to Graphviz DOT.
func DOT(doc *workflow.Document, opts Options) []byte {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=1.0;\n")
	buf.WriteString("  nodesep=0.5;\n")
	buf.WriteString("\n")

	for _, n := range doc.Nodes {
		attrs := fmtAttrs(n, fmtLabel(n, opts.Detailed))
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range doc.Edges {
		var attrs []string
		if e.Label != "" {
			attrs = append(attrs, fmt.Sprintf("label=%q", e.Label))
		} else if e.SourceHandle != "" && e.SourceHandle != workflow.HandleRight {
			attrs = append(attrs, fmt.Sprintf("label=%q", e.SourceHandle))
		}
		if len(attrs) == 0 {
			fmt.Fprintf(&buf, "  %q -> %q;\n", e.Source, e.Target)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.Source, e.Target, strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.Bytes()
}

func fmtLabel(n workflow.Node, detailed bool) string {
	name := n.DisplayName()
	if !detailed {
		return name
	}
	return fmt.Sprintf("%s\n%s (%s)", name, n.ID, n.Kind)
}

func fmtAttrs(n workflow.Node, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if n.IsDraft() {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey", "fontcolor=black")
	}
	return attrs
}

// SVG renders a document to SVG using Graphviz.
func SVG(ctx context.Context, doc *workflow.Document, opts Options) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes(DOT(doc, opts))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

// Export renders doc in the named format. An unknown format is an
// UNSUPPORTED error; anything else is a rendering failure.
func Export(ctx context.Context, doc *workflow.Document, format string, opts Options) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatDOT, "":
		return DOT(doc, opts), nil
	case FormatSVG:
		return SVG(ctx, doc, opts)
	}
	return nil, errors.New(errors.ErrCodeUnsupported, "unsupported render format %q (want dot or svg)", format)
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
