package materialize

// Mode selects the provenance stamped on materialized nodes.
type Mode int

const (
	// ModeDraftMerge is used when AI output is merged into a live workflow
	// for review: nodes are marked as unreviewed drafts.
	ModeDraftMerge Mode = iota

	// ModeCommitImport is used when an AI-authored workflow is converted for
	// persistence: nodes count as already reviewed.
	ModeCommitImport
)

// Provenance is the pair of flags a mode stamps on every node.
type Provenance struct {
	GeneratedByAI bool
	IsNew         bool
}

// Provenance returns the flags for m.
func (m Mode) Provenance() Provenance {
	switch m {
	case ModeCommitImport:
		return Provenance{GeneratedByAI: true, IsNew: false}
	default:
		return Provenance{GeneratedByAI: true, IsNew: true}
	}
}

func (m Mode) String() string {
	switch m {
	case ModeDraftMerge:
		return "draft-merge"
	case ModeCommitImport:
		return "commit-import"
	}
	return "unknown"
}
