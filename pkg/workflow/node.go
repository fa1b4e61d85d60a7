package workflow

import "fmt"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Tool types.
const (
	ToolTypeMCP = "mcp-tool"
	ToolTypeApp = "app-tool"
)

// HTTP methods accepted on Http nodes.
var HTTPMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD"}

// DefaultHTTPMethod is used when a node names no method, or an unknown one.
const DefaultHTTPMethod = "GET"

// Position is a 2-D canvas coordinate (top-left corner of the node box).
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Runtime holds editor-side state.
type Runtime struct {
	// IsNew marks an unreviewed draft.
	IsNew bool `json:"isNew" yaml:"isNew"`
}

// Message is one LLM prompt message.
type Message struct {
	Role    string    `json:"role" yaml:"role"`
	Content *RichText `json:"content,omitempty" yaml:"content,omitempty"`
}

// Tool identifies the tool a Tool node invokes.
type Tool struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	Type        string `json:"type" yaml:"type"`
	ServerID    string `json:"serverId,omitempty" yaml:"serverId,omitempty"`
	ServerName  string `json:"serverName,omitempty" yaml:"serverName,omitempty"`
}

// OutputMapping exposes the referenced value under Key in the workflow result.
type OutputMapping struct {
	Key    string     `json:"key" yaml:"key"`
	Source *SourceRef `json:"source,omitempty" yaml:"source,omitempty"`
}

// Node is a unit of work in a workflow graph. Kind-specific fields are
// empty for kinds that do not use them.
type Node struct {
	ID            string    `json:"id" yaml:"id"`
	Kind          Kind      `json:"kind" yaml:"kind"`
	Name          string    `json:"name" yaml:"name"`
	Description   string    `json:"description,omitempty" yaml:"description,omitempty"`
	Position      *Position `json:"position,omitempty" yaml:"position,omitempty"`
	OutputSchema  Schema    `json:"outputSchema" yaml:"outputSchema"`
	GeneratedByAI bool      `json:"generatedByAI,omitempty" yaml:"generatedByAI,omitempty"`
	Runtime       Runtime   `json:"runtime" yaml:"runtime"`

	// LLM
	Messages []Message      `json:"messages,omitempty" yaml:"messages,omitempty"`
	Model    map[string]any `json:"model,omitempty" yaml:"model,omitempty"`

	// Condition
	Branches map[string]any `json:"branches,omitempty" yaml:"branches,omitempty"`

	// Tool
	Tool    *Tool     `json:"tool,omitempty" yaml:"tool,omitempty"`
	Message *RichText `json:"message,omitempty" yaml:"message,omitempty"`

	// Http
	URL     *Value     `json:"url,omitempty" yaml:"url,omitempty"`
	Method  string     `json:"method,omitempty" yaml:"method,omitempty"`
	Headers []KeyValue `json:"headers,omitempty" yaml:"headers,omitempty"`
	Query   []KeyValue `json:"query,omitempty" yaml:"query,omitempty"`
	Body    *Value     `json:"body,omitempty" yaml:"body,omitempty"`
	Timeout int        `json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds

	// Template
	Template *Template `json:"template,omitempty" yaml:"template,omitempty"`

	// Output
	OutputData []OutputMapping `json:"outputData,omitempty" yaml:"outputData,omitempty"`
}

// IsDraft reports whether the node is an unreviewed AI draft.
func (n *Node) IsDraft() bool { return n.GeneratedByAI && n.Runtime.IsNew }

// DisplayName returns the name, falling back to the kind's default name.
func (n *Node) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.Kind.DefaultName()
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	out := n
	if n.Position != nil {
		p := *n.Position
		out.Position = &p
	}
	out.OutputSchema = n.OutputSchema.Clone()
	if n.Messages != nil {
		out.Messages = make([]Message, len(n.Messages))
		for i, m := range n.Messages {
			out.Messages[i] = Message{Role: m.Role, Content: m.Content.Clone()}
		}
	}
	out.Model = cloneMap(n.Model)
	out.Branches = cloneMap(n.Branches)
	if n.Tool != nil {
		t := *n.Tool
		out.Tool = &t
	}
	out.Message = n.Message.Clone()
	out.URL = n.URL.Clone()
	out.Headers = cloneKeyValues(n.Headers)
	out.Query = cloneKeyValues(n.Query)
	out.Body = n.Body.Clone()
	out.Template = n.Template.Clone()
	if n.OutputData != nil {
		out.OutputData = make([]OutputMapping, len(n.OutputData))
		for i, o := range n.OutputData {
			out.OutputData[i] = OutputMapping{Key: o.Key, Source: o.Source.Clone()}
		}
	}
	return out
}

// Reference-bearing fields.
const (
	FieldURL        = "url"
	FieldHeaders    = "headers"
	FieldQuery      = "query"
	FieldBody       = "body"
	FieldOutputData = "outputData"
)

// RefFields lists every field that may carry a [SourceRef].
var RefFields = []string{FieldURL, FieldHeaders, FieldQuery, FieldBody, FieldOutputData}

// VisitRefs calls fn for every source reference held by the node, in a
// fixed field order: url, headers, query, body, outputData. The field
// argument is a path such as "headers[1].value". The reference fn returns
// replaces the visited one in place; returning nil clears the field.
//
// This is the single place that knows which fields can carry references.
func (n *Node) VisitRefs(fn func(field string, ref *SourceRef) *SourceRef) {
	visitValue := func(field string, v **Value) {
		if *v == nil || (*v).Ref == nil {
			return
		}
		if next := fn(field, (*v).Ref); next != nil {
			(*v).Ref = next
		} else {
			*v = nil
		}
	}

	visitValue(FieldURL, &n.URL)
	for i := range n.Headers {
		visitValue(fmt.Sprintf("%s[%d].value", FieldHeaders, i), &n.Headers[i].Value)
	}
	for i := range n.Query {
		visitValue(fmt.Sprintf("%s[%d].value", FieldQuery, i), &n.Query[i].Value)
	}
	visitValue(FieldBody, &n.Body)
	for i := range n.OutputData {
		if n.OutputData[i].Source == nil {
			continue
		}
		n.OutputData[i].Source = fn(fmt.Sprintf("%s[%d].source", FieldOutputData, i), n.OutputData[i].Source)
	}
}

// LocatedRef is a reference together with the node and field holding it.
type LocatedRef struct {
	NodeID string    `json:"nodeId"`
	Field  string    `json:"field"`
	Ref    SourceRef `json:"ref"`
}

// String formats the location as node.field -> target.
func (l LocatedRef) String() string {
	return fmt.Sprintf("%s.%s -> %s", l.NodeID, l.Field, l.Ref.String())
}

// Refs returns every reference held by the node.
func (n *Node) Refs() []LocatedRef {
	var out []LocatedRef
	c := n.Clone()
	c.VisitRefs(func(field string, ref *SourceRef) *SourceRef {
		out = append(out, LocatedRef{NodeID: n.ID, Field: field, Ref: *ref.Clone()})
		return ref
	})
	return out
}
