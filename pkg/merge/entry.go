package merge

import (
	"github.com/matzehuels/flowmerge/pkg/candidate"
	"github.com/matzehuels/flowmerge/pkg/materialize"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// DraftMerge merges a generated candidate into a live workflow. New nodes
// are unreviewed drafts (generatedByAI and runtime.isNew both set).
func DraftMerge(p *candidate.Payload, doc *workflow.Document, opts ...Option) *Result {
	return NewEngine(materialize.ModeDraftMerge, opts...).Merge(p.Nodes, p.Edges, doc.Nodes, doc.Edges)
}

// Import is a candidate converted into a standalone workflow.
type Import struct {
	Name        string
	Description string
	*Result
}

// Document builds a new workflow document holding the imported graph.
func (im *Import) Document(id string) *workflow.Document {
	doc := workflow.NewDocument(id, im.Name)
	doc.Description = im.Description
	doc.Append(im.Nodes, im.Edges)
	return doc
}

// CommitImport converts a generated workflow for persistence. Nodes are
// marked generatedByAI but count as reviewed (runtime.isNew unset). Ids
// only have to avoid existingNodeIDs; there are no existing edges.
func CommitImport(p *candidate.Payload, existingNodeIDs []string, opts ...Option) *Import {
	existing := make([]workflow.Node, len(existingNodeIDs))
	for i, id := range existingNodeIDs {
		existing[i] = workflow.Node{ID: id}
	}
	res := NewEngine(materialize.ModeCommitImport, opts...).Merge(p.Nodes, p.Edges, existing, nil)
	return &Import{Name: p.Name, Description: p.Description, Result: res}
}
