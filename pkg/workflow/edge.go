package workflow

// Source handles emitted by Condition nodes, plus the default right handle.
const (
	HandleIf     = "if"
	HandleElseIf = "elseif"
	HandleElse   = "else"
	HandleRight  = "right"
)

// Edge is a directed connection between two nodes.
type Edge struct {
	ID           string `json:"id" yaml:"id"`
	Source       string `json:"source" yaml:"source"`
	Target       string `json:"target" yaml:"target"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
	Label        string `json:"label,omitempty" yaml:"label,omitempty"`
}

// IsSelfLoop reports whether the edge starts and ends at the same node.
func (e Edge) IsSelfLoop() bool { return e.Source == e.Target }

// Touches reports whether id is either endpoint of the edge.
func (e Edge) Touches(id string) bool { return e.Source == id || e.Target == id }
