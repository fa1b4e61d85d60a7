package pipeline

import (
	"context"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowmerge/pkg/cache"
	"github.com/matzehuels/flowmerge/pkg/candidate"
	"github.com/matzehuels/flowmerge/pkg/errors"
	"github.com/matzehuels/flowmerge/pkg/layout"
	"github.com/matzehuels/flowmerge/pkg/materialize"
	"github.com/matzehuels/flowmerge/pkg/merge"
	"github.com/matzehuels/flowmerge/pkg/observability"
	"github.com/matzehuels/flowmerge/pkg/render"
	"github.com/matzehuels/flowmerge/pkg/store"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// Runner executes pipeline operations against a store.
//
// Collaborators are exported so callers can swap them after construction;
// change them before the Runner is shared between goroutines.
type Runner struct {
	Store    store.Store
	Cache    cache.Cache
	Keyer    cache.Keyer
	Layouter layout.Layouter
	Logger   *log.Logger
	Options  Options

	locks keyedMutex
}

// NewRunner creates a runner over st.
// If keyer is nil, a DefaultKeyer is used.
// If c is nil, a NullCache is used (caching disabled).
// If logger is nil, nothing is logged.
func NewRunner(st store.Store, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	opts := DefaultOptions()
	return &Runner{
		Store:    st,
		Cache:    c,
		Keyer:    keyer,
		Layouter: layout.Fallback{layout.NewGraphviz(opts.Layout), layout.NewLayered(opts.Layout)},
		Logger:   logger,
		Options:  opts,
	}
}

// Configure validates opts and rebuilds the Layouter from them.
func (r *Runner) Configure(opts Options) error {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}
	l, err := layout.New(opts.LayoutEngine, opts.Layout)
	if err != nil {
		return err
	}
	r.Options = opts
	r.Layouter = l
	return nil
}

// =============================================================================
// Merge Operations
// =============================================================================

// Generate draft-merges a candidate into a stored workflow, lays out the
// combined graph and saves it. A workflow that does not exist yet starts
// empty, named after the candidate.
func (r *Runner) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	if err := errors.ValidateWorkflowID(req.WorkflowID); err != nil {
		return nil, err
	}
	p, err := decode(req.Candidate, req.Payload, req.Format)
	if err != nil {
		return nil, err
	}

	unlock := r.locks.lock(req.WorkflowID)
	defer unlock()

	doc, err := r.load(ctx, req.WorkflowID)
	if errors.IsNotFound(err) {
		doc = workflow.NewDocument(req.WorkflowID, p.Name)
		doc.Description = p.Description
	} else if err != nil {
		return nil, err
	}

	res := &Result{}
	res.Merge = r.merge(ctx, doc.ID, materialize.ModeDraftMerge, len(p.Nodes), &res.Stats, func(opts []merge.Option) *merge.Result {
		return merge.DraftMerge(p, doc, opts...)
	})
	doc.Append(res.Merge.Nodes, res.Merge.Edges)

	if err := r.finish(ctx, doc, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Import commit-imports a candidate as a new workflow. The target must not
// exist or must have no nodes; otherwise the import fails with CONFLICT.
func (r *Runner) Import(ctx context.Context, req ImportRequest) (*Result, error) {
	if err := errors.ValidateWorkflowID(req.WorkflowID); err != nil {
		return nil, err
	}
	p, err := decode(req.Candidate, req.Payload, req.Format)
	if err != nil {
		return nil, err
	}

	unlock := r.locks.lock(req.WorkflowID)
	defer unlock()

	doc, err := r.load(ctx, req.WorkflowID)
	switch {
	case errors.IsNotFound(err):
		doc = workflow.NewDocument(req.WorkflowID, "")
	case err != nil:
		return nil, err
	case len(doc.Nodes) > 0:
		return nil, errors.New(errors.ErrCodeConflict,
			"workflow %q already has %d nodes; generate merges into existing workflows", doc.ID, len(doc.Nodes))
	}

	res := &Result{}
	var im *merge.Import
	res.Merge = r.merge(ctx, doc.ID, materialize.ModeCommitImport, len(p.Nodes), &res.Stats, func(opts []merge.Option) *merge.Result {
		im = merge.CommitImport(p, nil, opts...)
		return im.Result
	})
	if im.Name != "" {
		doc.Name = im.Name
	}
	if im.Description != "" {
		doc.Description = im.Description
	}
	doc.Append(im.Nodes, im.Edges)

	if err := r.finish(ctx, doc, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Runner) merge(ctx context.Context, id string, mode materialize.Mode, candidates int, stats *Stats, run func([]merge.Option) *merge.Result) *merge.Result {
	hooks := observability.Pipeline()
	hooks.OnMergeStart(ctx, id, mode.String(), candidates)

	start := time.Now()
	opts := append([]merge.Option{merge.WithLogger(r.Logger)}, r.Options.Merge...)
	res := run(opts)
	stats.MergeTime = time.Since(start)

	hooks.OnMergeComplete(ctx, id, mode.String(), len(res.Nodes), len(res.Report.DroppedEdges), stats.MergeTime)
	r.Logger.Info("merged candidate",
		"workflow", id,
		"mode", mode,
		"nodes", len(res.Nodes),
		"edges", len(res.Edges),
		"remapped", len(res.Report.Remapped),
		"dropped_edges", len(res.Report.DroppedEdges),
		"duration", stats.MergeTime)
	return res
}

// finish runs the shared tail of every merge: acyclicity, layout, save.
func (r *Runner) finish(ctx context.Context, doc *workflow.Document, res *Result) error {
	if r.Options.RequireAcyclic {
		if err := workflow.CheckAcyclic(doc.Nodes, doc.Edges); err != nil {
			return err
		}
	}
	r.layout(ctx, doc, &res.Stats)
	if err := r.save(ctx, doc, &res.Stats); err != nil {
		return err
	}
	res.Document = doc
	res.Stats.NodeCount = len(doc.Nodes)
	res.Stats.EdgeCount = len(doc.Edges)
	return nil
}

// =============================================================================
// Document Operations
// =============================================================================

// Layout recomputes positions for a stored workflow and saves it.
func (r *Runner) Layout(ctx context.Context, id string) (*Result, error) {
	unlock := r.locks.lock(id)
	defer unlock()

	doc, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	r.layout(ctx, doc, &res.Stats)
	if err := r.save(ctx, doc, &res.Stats); err != nil {
		return nil, err
	}
	res.Document = doc
	res.Stats.NodeCount = len(doc.Nodes)
	res.Stats.EdgeCount = len(doc.Edges)
	return res, nil
}

// Review accepts or rejects drafts of a stored workflow and saves it.
func (r *Runner) Review(ctx context.Context, req ReviewRequest) (*ReviewResult, error) {
	for _, id := range req.Accept {
		if slices.Contains(req.Reject, id) {
			return nil, errors.New(errors.ErrCodeInvalidInput, "node %q is both accepted and rejected", id)
		}
	}
	if req.AcceptAll && req.RejectAll {
		return nil, errors.New(errors.ErrCodeInvalidInput, "cannot accept and reject all drafts at once")
	}

	unlock := r.locks.lock(req.WorkflowID)
	defer unlock()

	doc, err := r.load(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	out := &ReviewResult{}
	switch {
	case req.RejectAll:
		out.Rejected = doc.RejectDrafts()
	case len(req.Reject) > 0:
		out.Rejected = doc.RejectDrafts(req.Reject...)
	}
	switch {
	case req.AcceptAll:
		out.Accepted = doc.AcceptDrafts()
	case len(req.Accept) > 0:
		out.Accepted = doc.AcceptDrafts(req.Accept...)
	}

	if err := r.save(ctx, doc, &Stats{}); err != nil {
		return nil, err
	}
	r.Logger.Info("reviewed drafts",
		"workflow", doc.ID,
		"accepted", out.Accepted,
		"rejected", len(out.Rejected.RemovedNodes),
		"remaining", len(doc.Drafts()))
	out.Document = doc
	return out, nil
}

// Edit applies req.Changes through the store's incremental write. The
// change is checked against the current document first: node ids must be
// valid, kinds known, and every edge must end at a node that survives the
// change. Positions are taken as given; no layout runs.
func (r *Runner) Edit(ctx context.Context, req EditRequest) (*workflow.Document, error) {
	ch := req.Changes
	for _, n := range ch.Nodes {
		if err := errors.ValidateNodeID(n.ID); err != nil {
			return nil, err
		}
		if !n.Kind.Valid() {
			return nil, errors.New(errors.ErrCodeInvalidKind, "node %q has unknown kind %q", n.ID, n.Kind)
		}
	}
	for _, e := range ch.Edges {
		if e.ID == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "edge %s -> %s has no id", e.Source, e.Target)
		}
	}

	unlock := r.locks.lock(req.WorkflowID)
	defer unlock()

	doc, err := r.load(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}
	preview := doc.Clone()
	ch.Apply(preview)
	for _, e := range preview.Edges {
		if _, ok := preview.Node(e.Source); !ok {
			return nil, errors.New(errors.ErrCodeInvalidInput, "edge %q starts at unknown node %q", e.ID, e.Source)
		}
		if _, ok := preview.Node(e.Target); !ok {
			return nil, errors.New(errors.ErrCodeInvalidInput, "edge %q ends at unknown node %q", e.ID, e.Target)
		}
	}
	if r.Options.RequireAcyclic {
		if err := workflow.CheckAcyclic(preview.Nodes, preview.Edges); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	updated, err := r.Store.SaveStructure(ctx, req.WorkflowID, ch)
	elapsed := time.Since(start)
	observability.Store().OnSave(ctx, req.WorkflowID, elapsed, err)
	if err != nil {
		return nil, err
	}
	observability.Pipeline().OnSaveComplete(ctx, updated.ID, updated.Version, nil)
	r.Logger.Info("edited workflow",
		"workflow", updated.ID,
		"upserted", len(ch.Nodes)+len(ch.Edges),
		"deleted", len(ch.DeleteNodes)+len(ch.DeleteEdges),
		"version", updated.Version,
		"duration", elapsed)
	return updated, nil
}

// Get loads a stored workflow.
func (r *Runner) Get(ctx context.Context, id string) (*workflow.Document, error) {
	return r.load(ctx, id)
}

// List summarizes stored workflows.
func (r *Runner) List(ctx context.Context) ([]store.Summary, error) {
	return r.Store.List(ctx)
}

// Delete removes a stored workflow.
func (r *Runner) Delete(ctx context.Context, id string) error {
	unlock := r.locks.lock(id)
	defer unlock()
	return r.Store.Delete(ctx, id)
}

// Export renders a stored workflow as DOT or SVG.
func (r *Runner) Export(ctx context.Context, id, format string) ([]byte, error) {
	doc, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := exportDocument(ctx, doc, format, render.Options{})
	if err != nil {
		if errors.Is(err, errors.ErrCodeUnsupported) {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "export %q", id)
	}
	return out, nil
}

// Validate checks a raw candidate without merging it.
func (r *Runner) Validate(payload []byte, format string) []candidate.Issue {
	return Validate(payload, format)
}

// Validate checks a raw candidate. Parse failures are reported as a single
// issue at the root.
func Validate(payload []byte, format string) []candidate.Issue {
	raw, err := candidate.Parse(payload, format)
	if err != nil {
		return []candidate.Issue{{Code: candidate.CodeInvalidType, Message: errors.UserMessage(err)}}
	}
	return candidate.Validate(raw)
}

// Close releases the store and the cache.
func (r *Runner) Close() error {
	var first error
	if r.Store != nil {
		first = r.Store.Close()
	}
	if r.Cache != nil {
		if err := r.Cache.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// =============================================================================
// Stages
// =============================================================================

// layout positions every node of doc. Failures are logged and recorded in
// stats; nodes keep their previous positions.
func (r *Runner) layout(ctx context.Context, doc *workflow.Document, stats *Stats) {
	hooks := observability.Pipeline()
	hooks.OnLayoutStart(ctx, doc.ID, len(doc.Nodes))
	start := time.Now()

	cl := &cachedLayouter{
		inner:  r.Layouter,
		cache:  r.Cache,
		keyer:  r.Keyer,
		opts:   cache.LayoutKeyOpts{Engine: r.Options.LayoutEngine, Options: r.Options.Layout.Key()},
		ttl:    r.Options.LayoutTTL,
		logger: r.Logger,
	}
	nodes, err := layout.Apply(ctx, cl, doc.Nodes, doc.Edges)
	doc.Nodes = nodes
	stats.LayoutTime = time.Since(start)
	stats.LayoutCacheHit = cl.hit
	hooks.OnLayoutComplete(ctx, doc.ID, stats.LayoutTime, err)

	if err != nil {
		stats.LayoutError = err.Error()
		r.Logger.Warn("layout failed, keeping previous positions", "workflow", doc.ID, "err", err)
		return
	}
	r.Logger.Info("computed layout",
		"workflow", doc.ID,
		"nodes", len(doc.Nodes),
		"cached", cl.hit,
		"duration", stats.LayoutTime)
}

func (r *Runner) load(ctx context.Context, id string) (*workflow.Document, error) {
	start := time.Now()
	doc, err := r.Store.Get(ctx, id)
	observability.Store().OnLoad(ctx, id, time.Since(start), err)
	return doc, err
}

func (r *Runner) save(ctx context.Context, doc *workflow.Document, stats *Stats) error {
	start := time.Now()
	err := r.Store.Save(ctx, doc)
	stats.SaveTime = time.Since(start)
	observability.Store().OnSave(ctx, doc.ID, stats.SaveTime, err)
	observability.Pipeline().OnSaveComplete(ctx, doc.ID, doc.Version, err)
	if err != nil {
		return err
	}
	r.Logger.Info("saved workflow", "workflow", doc.ID, "version", doc.Version, "duration", stats.SaveTime)
	return nil
}

// exportDocument renders documents for Export. Tests replace it.
var exportDocument = render.Export

func decode(p *candidate.Payload, data []byte, format string) (*candidate.Payload, error) {
	if p != nil {
		return p, nil
	}
	if len(data) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidPayload, "candidate payload is empty")
	}
	return candidate.Decode(data, format)
}
