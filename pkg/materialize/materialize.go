// Package materialize turns raw candidate node payloads into fully formed
// workflow nodes.
//
// A [Materializer] starts from the kind's default shape, overlays whatever
// the candidate supplied, remaps source references and stamps the
// provenance of its [Mode]. Candidate output is untrusted: a field that
// cannot be coerced is dropped and the default kept, so materializing
// never fails.
package materialize

import (
	"strings"

	"github.com/matzehuels/flowmerge/pkg/refs"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// Option configures a [Materializer].
type Option func(*Materializer)

// WithDefaultSchema replaces the output schema attached to nodes that supply
// none. Every node receives its own copy.
func WithDefaultSchema(s workflow.Schema) Option {
	return func(m *Materializer) {
		if len(s) > 0 {
			m.schema = s.Clone()
		}
	}
}

// WithTools lets Tool nodes that only name a tool id pick up the rest of
// the tool metadata from the catalog.
func WithTools(tools []workflow.CatalogTool) Option {
	return func(m *Materializer) { m.tools = workflow.NewCatalog(tools) }
}

// Materializer builds nodes for one [Mode].
type Materializer struct {
	mode   Mode
	schema workflow.Schema
	tools  workflow.Catalog
}

// New creates a materializer for mode.
func New(mode Mode, opts ...Option) *Materializer {
	m := &Materializer{mode: mode, schema: workflow.DefaultOutputSchema()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mode returns the construction mode.
func (m *Materializer) Mode() Mode { return m.mode }

// DefaultSchema returns a copy of the schema attached to nodes without one.
func (m *Materializer) DefaultSchema() workflow.Schema { return m.schema.Clone() }

// Materialize builds the node with id finalID from a candidate payload.
// Keys may appear at the top level of payload or inside payload["config"];
// config wins. Candidate nodes resolve name and description before this
// point (see candidate.Node.Payload), so a top-level name is never
// shadowed by config. Source references are remapped through ids.
func (m *Materializer) Materialize(kind workflow.Kind, payload map[string]any, finalID string, ids refs.Map) workflow.Node {
	fields := flatten(payload)

	n := Defaults(kind)
	n.ID = finalID
	if name, _ := asString(fields["name"]); strings.TrimSpace(name) != "" {
		n.Name = name
	}
	if desc, ok := asString(fields["description"]); ok {
		n.Description = desc
	}
	if pos, ok := position(fields["position"]); ok {
		n.Position = pos
	}
	if s, ok := schema(fields["outputSchema"]); ok {
		n.OutputSchema = s
	} else {
		n.OutputSchema = m.schema.Clone()
	}

	switch kind {
	case workflow.KindLLM:
		if msgs, ok := messages(fields["messages"]); ok && len(msgs) > 0 {
			n.Messages = msgs
		}
		if model, ok := asMap(fields["model"]); ok {
			n.Model = workflow.CloneMap(model)
		}
	case workflow.KindCondition:
		if branches, ok := asMap(fields["branches"]); ok && len(branches) > 0 {
			n.Branches = workflow.CloneMap(branches)
		}
	case workflow.KindTool:
		if tool, ok := m.tool(fields); ok {
			n.Tool = tool
		}
		if msg, ok := richText(fields["message"]); ok {
			n.Message = msg
		}
	case workflow.KindHTTP:
		if url, ok := value(fields["url"]); ok {
			n.URL = url
		}
		if meth, ok := method(fields["method"]); ok {
			n.Method = meth
		}
		if headers, ok := keyValues(fields["headers"]); ok {
			n.Headers = headers
		}
		if query, ok := keyValues(fields["query"]); ok {
			n.Query = query
		}
		if body, ok := value(fields["body"]); ok {
			n.Body = body
		}
		if ms, ok := asNumber(fields["timeout"]); ok && ms > 0 {
			n.Timeout = int(ms)
		}
	case workflow.KindTemplate:
		if tmpl, ok := template(fields["template"]); ok {
			n.Template = tmpl
		}
	case workflow.KindOutput:
		if out, ok := outputs(fields["outputData"]); ok {
			n.OutputData = out
		}
	}

	n = refs.Node(&n, ids)

	p := m.mode.Provenance()
	n.GeneratedByAI = p.GeneratedByAI
	n.Runtime.IsNew = p.IsNew
	return n
}

// Defaults returns the default shape of a node of the given kind, without
// id, output schema or provenance.
func Defaults(kind workflow.Kind) workflow.Node {
	n := workflow.Node{Kind: kind, Name: kind.DefaultName()}
	switch kind {
	case workflow.KindLLM:
		n.Messages = []workflow.Message{{Role: workflow.RoleUser, Content: workflow.EmptyDoc()}}
	case workflow.KindCondition:
		n.Branches = map[string]any{
			workflow.HandleIf:   branch(workflow.HandleIf),
			workflow.HandleElse: branch(workflow.HandleElse),
		}
	case workflow.KindHTTP:
		n.Method = workflow.DefaultHTTPMethod
		n.Headers = []workflow.KeyValue{}
		n.Query = []workflow.KeyValue{}
	case workflow.KindTemplate:
		n.Template = workflow.TiptapTemplate(workflow.EmptyDoc())
	case workflow.KindTool:
		n.Message = workflow.EmptyDoc()
	case workflow.KindOutput:
		n.OutputData = []workflow.OutputMapping{}
	}
	return n
}

func branch(id string) map[string]any {
	return map[string]any{
		"id":              id,
		"type":            id,
		"conditions":      []any{},
		"logicalOperator": "AND",
	}
}

// flatten merges the top-level keys of payload with payload["config"],
// config keys winning.
func flatten(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if k != "config" {
			out[k] = v
		}
	}
	if cfg, ok := asMap(payload["config"]); ok {
		for k, v := range cfg {
			out[k] = v
		}
	}
	return out
}

// tool decodes the nested tool object or the flat toolId form, then fills
// gaps from the catalog. The server id and name default to the tool id.
func (m *Materializer) tool(fields map[string]any) (*workflow.Tool, bool) {
	var t workflow.Tool
	if obj, ok := asMap(fields["tool"]); ok {
		t.ID, _ = asString(obj["id"])
		t.Type, _ = asString(obj["type"])
		t.Description, _ = asString(obj["description"])
		t.ServerID, _ = asString(obj["serverId"])
		t.ServerName, _ = asString(obj["serverName"])
	}
	if t.ID == "" {
		t.ID, _ = asString(fields["toolId"])
		t.Description, _ = asString(fields["toolDescription"])
		t.ServerID, _ = asString(fields["serverId"])
		t.ServerName, _ = asString(fields["serverName"])
	}
	if t.ID == "" {
		return nil, false
	}

	if c, ok := m.tools.Lookup(t.ID); ok {
		t.ID = c.ID
		if t.Description == "" {
			t.Description = c.Description
		}
		if t.Type == "" {
			t.Type = c.Type
		}
		if t.ServerID == "" {
			t.ServerID = c.ServerID
		}
		if t.ServerName == "" {
			t.ServerName = c.ServerName
		}
	}

	if t.Type != workflow.ToolTypeMCP && t.Type != workflow.ToolTypeApp {
		t.Type = workflow.ToolTypeMCP
	}
	if t.ServerID == "" {
		t.ServerID = t.ID
	}
	if t.ServerName == "" {
		t.ServerName = t.ID
	}
	return &t, true
}
