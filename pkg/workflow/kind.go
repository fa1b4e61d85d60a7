package workflow

import (
	"strings"

	"github.com/matzehuels/flowmerge/pkg/errors"
)

// Kind determines which payload fields of a node are meaningful.
type Kind string

// Node kinds.
const (
	KindInput     Kind = "input"
	KindLLM       Kind = "llm"
	KindCondition Kind = "condition"
	KindNote      Kind = "note"
	KindTool      Kind = "tool"
	KindHTTP      Kind = "http"
	KindTemplate  Kind = "template"
	KindOutput    Kind = "output"
)

// Kinds lists every node kind in display order.
var Kinds = []Kind{
	KindInput, KindLLM, KindCondition, KindNote,
	KindTool, KindHTTP, KindTemplate, KindOutput,
}

// ParseKind parses a kind case-insensitively ("LLM", "Http" and "http" are
// all accepted).
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", errors.New(errors.ErrCodeInvalidKind, "unknown node kind %q", s)
	}
	return k, nil
}

// Valid reports whether k is one of [Kinds].
func (k Kind) Valid() bool {
	switch k {
	case KindInput, KindLLM, KindCondition, KindNote,
		KindTool, KindHTTP, KindTemplate, KindOutput:
		return true
	}
	return false
}

// DefaultName is the display name a node of this kind gets when none is
// supplied.
func (k Kind) DefaultName() string { return strings.ToUpper(string(k)) }

// String returns the wire value.
func (k Kind) String() string { return string(k) }

// KindNames returns the wire values of all kinds.
func KindNames() []string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return names
}
