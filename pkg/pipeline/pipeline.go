// Package pipeline runs the workflow compiler end to end.
//
// A [Runner] ties the compiler packages to persistence: it decodes and
// validates candidate payloads, merges them into stored documents, lays
// the result out and saves it. The CLI and the HTTP server both drive the
// same Runner, so behavior is identical across entry points.
//
// # Stages
//
//  1. Decode: parse JSON or YAML and validate the candidate shape
//  2. Merge: draft-merge into a live document, or commit-import into a new one
//  3. Check: optionally reject graphs with cycles
//  4. Layout: position every node, cached by graph shape and geometry
//  5. Save: persist under the store's optimistic version rule
//
// Operations on one workflow id are serialized inside the Runner, so at
// most one merge per document is in flight per process. Across processes
// the store's version check catches concurrent writers.
//
// Edit skips stages 1 to 4: it applies a hand-made change through the
// store's incremental write.
//
// # Usage
//
//	runner := pipeline.NewRunner(st, c, nil, logger)
//	res, err := runner.Generate(ctx, pipeline.GenerateRequest{
//	    WorkflowID: "support-triage",
//	    Payload:    data,
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(len(res.Merge.Nodes), "nodes drafted")
package pipeline

import (
	"time"

	"github.com/matzehuels/flowmerge/pkg/candidate"
	"github.com/matzehuels/flowmerge/pkg/layout"
	"github.com/matzehuels/flowmerge/pkg/merge"
	"github.com/matzehuels/flowmerge/pkg/store"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// =============================================================================
// Default Values
// =============================================================================

// DefaultLayoutTTL is how long cached layouts live.
const DefaultLayoutTTL = 7 * 24 * time.Hour

// DefaultLayoutEngine is the engine used when none is configured.
const DefaultLayoutEngine = "graphviz"

// =============================================================================
// Requests
// =============================================================================

// GenerateRequest asks for a draft merge into an existing workflow.
type GenerateRequest struct {
	WorkflowID string
	// Payload is the raw candidate. Ignored when Candidate is set.
	Payload []byte
	// Format is "json" (default) or "yaml".
	Format string
	// Candidate is an already decoded payload.
	Candidate *candidate.Payload
}

// ImportRequest asks for a commit import into a new or empty workflow.
type ImportRequest struct {
	WorkflowID string
	Payload    []byte
	Format     string
	Candidate  *candidate.Payload
}

// ReviewRequest accepts or rejects drafts. Reject is applied before
// Accept; an id may not appear in both.
type ReviewRequest struct {
	WorkflowID string
	Accept     []string
	Reject     []string
	AcceptAll  bool
	RejectAll  bool
}

// EditRequest applies an incremental change to a stored workflow: nodes
// and edges are upserted by id, then the named ids are removed.
type EditRequest struct {
	WorkflowID string
	Changes    store.Structure
}

// =============================================================================
// Results
// =============================================================================

// Result is the outcome of a merge stage plus the saved document.
type Result struct {
	Document *workflow.Document `json:"document"`
	Merge    *merge.Result      `json:"merge"`
	Stats    Stats              `json:"stats"`
}

// Stats records stage timings and counts.
type Stats struct {
	MergeTime      time.Duration `json:"mergeTime"`
	LayoutTime     time.Duration `json:"layoutTime"`
	SaveTime       time.Duration `json:"saveTime"`
	NodeCount      int           `json:"nodeCount"`
	EdgeCount      int           `json:"edgeCount"`
	LayoutCacheHit bool          `json:"layoutCacheHit"`
	// LayoutError is set when layout failed and positions were kept.
	LayoutError string `json:"layoutError,omitempty"`
}

// ReviewResult is the outcome of a review.
type ReviewResult struct {
	Document *workflow.Document    `json:"document"`
	Accepted int                   `json:"accepted"`
	Rejected workflow.RejectReport `json:"rejected"`
}

// =============================================================================
// Options
// =============================================================================

// Options configures a Runner beyond its collaborators.
type Options struct {
	// LayoutEngine names the engine used in cache keys. It must match the
	// Runner's Layouter.
	LayoutEngine string
	// Layout is the geometry used in cache keys.
	Layout layout.Options
	// LayoutTTL bounds cached layouts. Zero means DefaultLayoutTTL.
	LayoutTTL time.Duration
	// RequireAcyclic rejects merges whose result has a cycle.
	RequireAcyclic bool
	// Merge options passed to every merge (id generators, materializer
	// options).
	Merge []merge.Option
}

// DefaultOptions returns the options NewRunner uses.
func DefaultOptions() Options {
	return Options{
		LayoutEngine: DefaultLayoutEngine,
		Layout:       layout.DefaultOptions(),
		LayoutTTL:    DefaultLayoutTTL,
	}
}

// ValidateAndSetDefaults fills zero values and checks the layout geometry.
func (o *Options) ValidateAndSetDefaults() error {
	if o.LayoutEngine == "" {
		o.LayoutEngine = DefaultLayoutEngine
	}
	o.Layout = o.Layout.WithDefaults()
	if o.LayoutTTL <= 0 {
		o.LayoutTTL = DefaultLayoutTTL
	}
	return o.Layout.Validate()
}
