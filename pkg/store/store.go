// Package store persists workflow documents.
//
// Every backend implements [Store] with the same optimistic concurrency
// rule: a document is saved only when its Version equals the stored
// version (zero for a new document). A successful save increments Version
// and stamps UpdatedAt on the caller's document; a stale save fails with a
// CONFLICT error and changes nothing.
//
// Backends:
//   - [MemoryStore]: in-process, for tests and one-shot CLI runs
//   - [FileStore]: one JSON file per document
//   - [SQLiteStore]: normalized workflows/nodes/edges tables
//   - [RedisStore]: one JSON value per key, WATCH/MULTI for versions
//   - [MongoStore]: one document per workflow, version-filtered replace
package store

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/matzehuels/flowmerge/pkg/errors"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// Store loads and saves workflow documents.
type Store interface {
	// Get returns the document, or a WORKFLOW_NOT_FOUND error.
	Get(ctx context.Context, id string) (*workflow.Document, error)

	// Save writes the whole document under the optimistic version rule.
	Save(ctx context.Context, doc *workflow.Document) error

	// SaveStructure applies an incremental change to a stored document
	// and returns the result.
	SaveStructure(ctx context.Context, id string, s Structure) (*workflow.Document, error)

	// List returns summaries of all documents ordered by id.
	List(ctx context.Context) ([]Summary, error)

	// Delete removes a document, or returns WORKFLOW_NOT_FOUND.
	Delete(ctx context.Context, id string) error

	Close() error
}

// Structure is an incremental change: nodes and edges are upserted by id,
// then the named ids are removed. Removing a node also removes every edge
// touching it.
type Structure struct {
	Nodes       []workflow.Node `json:"nodes,omitempty"`
	Edges       []workflow.Edge `json:"edges,omitempty"`
	DeleteNodes []string        `json:"deleteNodes,omitempty"`
	DeleteEdges []string        `json:"deleteEdges,omitempty"`
}

// Apply performs the change on doc in place.
func (s Structure) Apply(doc *workflow.Document) {
	for _, n := range s.Nodes {
		if existing, ok := doc.Node(n.ID); ok {
			*existing = n.Clone()
		} else {
			doc.Nodes = append(doc.Nodes, n.Clone())
		}
	}
	for _, e := range s.Edges {
		if i := slices.IndexFunc(doc.Edges, func(x workflow.Edge) bool { return x.ID == e.ID }); i >= 0 {
			doc.Edges[i] = e
		} else {
			doc.Edges = append(doc.Edges, e)
		}
	}
	if len(s.DeleteNodes) > 0 {
		doc.Nodes = slices.DeleteFunc(doc.Nodes, func(n workflow.Node) bool {
			return slices.Contains(s.DeleteNodes, n.ID)
		})
	}
	doc.Edges = slices.DeleteFunc(doc.Edges, func(e workflow.Edge) bool {
		if slices.Contains(s.DeleteEdges, e.ID) {
			return true
		}
		return slices.ContainsFunc(s.DeleteNodes, e.Touches)
	})
}

// Summary is a document without its graph.
type Summary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Nodes       int       `json:"nodes"`
	Edges       int       `json:"edges"`
	Drafts      int       `json:"drafts"`
	Version     int64     `json:"version"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Summarize builds the summary of doc.
func Summarize(doc *workflow.Document) Summary {
	return Summary{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Nodes:       len(doc.Nodes),
		Edges:       len(doc.Edges),
		Drafts:      len(doc.Drafts()),
		Version:     doc.Version,
		UpdatedAt:   doc.UpdatedAt,
	}
}

func sortSummaries(s []Summary) {
	sort.Slice(s, func(i, j int) bool { return s[i].ID < s[j].ID })
}

// now is the clock used for UpdatedAt. Timestamps are truncated to
// microseconds so they survive every backend unchanged.
var now = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

func notFound(id string) error {
	return errors.New(errors.ErrCodeWorkflowNotFound, "workflow %q not found", id)
}

func conflict(id string, have, stored int64) error {
	return errors.New(errors.ErrCodeConflict,
		"workflow %q was modified concurrently (have version %d, stored version %d)", id, have, stored)
}

// raced reports a write that lost to a concurrent writer after the
// version check passed.
func raced(id string) error {
	return errors.New(errors.ErrCodeConflict, "workflow %q was modified concurrently", id)
}

// checkVersion enforces the optimistic rule. exists reports whether a
// stored document was found and stored is its version.
func checkVersion(doc *workflow.Document, exists bool, stored int64) error {
	if !exists {
		stored = 0
	}
	if doc.Version != stored {
		return conflict(doc.ID, doc.Version, stored)
	}
	return nil
}

// stamp advances the caller's document after a successful write.
func stamp(doc *workflow.Document, at time.Time) {
	doc.Version++
	doc.UpdatedAt = at
}

// next returns the version and timestamp a pending write will carry.
func next(doc *workflow.Document) (int64, time.Time) {
	return doc.Version + 1, now()
}

// prepare validates a document before any backend touches it.
func prepare(doc *workflow.Document) error {
	if doc == nil {
		return errors.New(errors.ErrCodeInvalidInput, "document is nil")
	}
	return errors.ValidateWorkflowID(doc.ID)
}

// saveStructure is SaveStructure for backends without a native
// incremental write: load, apply, save under the version rule.
func saveStructure(ctx context.Context, st Store, id string, s Structure) (*workflow.Document, error) {
	doc, err := st.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Apply(doc)
	if err := st.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// snapshot is the persisted form of a document: everything but the id
// travels as JSON.
func snapshot(doc *workflow.Document) ([]byte, error) {
	return workflow.Marshal(doc, workflow.FormatJSON)
}

func restore(data []byte) (*workflow.Document, error) {
	doc, err := workflow.Unmarshal(data, workflow.FormatJSON)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "decode stored workflow")
	}
	return doc, nil
}

// storageErr wraps a backend failure. Errors that already carry a code
// pass through unchanged.
func storageErr(err error, format string, args ...any) error {
	if errors.GetCode(err) != "" {
		return err
	}
	return errors.Wrap(errors.ErrCodeStorage, err, format, args...)
}
