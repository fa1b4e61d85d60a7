package candidate

import (
	"slices"
	"testing"

	"github.com/matzehuels/flowmerge/pkg/errors"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

func TestDecodeJSON(t *testing.T) {
	src := `{
		"name": "Summarize",
		"nodes": [
			{"id": "input", "kind": "Input", "name": "Start"},
			{"id": "llm", "kind": "llm", "messages": [{"role": "user", "content": "hi"}],
			 "config": {"model": {"provider": "openai"}}}
		],
		"edges": [{"source": "input", "target": "llm", "sourceHandle": "right"}]
	}`
	p, err := Decode([]byte(src), workflow.FormatJSON)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if p.Name != "Summarize" || len(p.Nodes) != 2 || len(p.Edges) != 1 {
		t.Fatalf("Decode() = %+v", p)
	}
	if p.Nodes[0].Kind != workflow.KindInput {
		t.Errorf("kind = %q, want input", p.Nodes[0].Kind)
	}
	cfg := p.Nodes[1].Config
	if _, ok := cfg["messages"]; !ok {
		t.Error("flat messages not folded into config")
	}
	if _, ok := cfg["model"]; !ok {
		t.Error("config.model lost")
	}
	if p.Edges[0].ID != "" || p.Edges[0].SourceHandle != "right" {
		t.Errorf("edge = %+v", p.Edges[0])
	}
}

func TestDecodeYAML(t *testing.T) {
	src := `
nodes:
  - id: fetch
    kind: http
    method: POST
    timeout: 3000
edges: []
`
	p, err := Decode([]byte(src), workflow.FormatYAML)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := p.Nodes[0].Config["timeout"]; got != float64(3000) {
		t.Errorf("timeout = %#v, want float64 3000", got)
	}
}

func TestDecodeSyntaxError(t *testing.T) {
	_, err := Decode([]byte(`{"nodes": [`), workflow.FormatJSON)
	if !errors.Is(err, errors.ErrCodeInvalidPayload) {
		t.Errorf("error = %v, want INVALID_PAYLOAD", err)
	}
	if Issues(err) != nil {
		t.Error("syntax error reported as schema issues")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []Issue
	}{
		{
			name: "valid",
			src:  `{"nodes":[{"id":"a","kind":"note"}],"edges":[]}`,
		},
		{
			name: "root not object",
			src:  `[]`,
			want: []Issue{{Path: "", Code: CodeInvalidType}},
		},
		{
			name: "missing arrays",
			src:  `{}`,
			want: []Issue{{Path: "nodes", Code: CodeRequired}, {Path: "edges", Code: CodeRequired}},
		},
		{
			name: "nodes not array",
			src:  `{"nodes":{},"edges":[]}`,
			want: []Issue{{Path: "nodes", Code: CodeInvalidType}},
		},
		{
			name: "node problems",
			src: `{"nodes":[
				{"kind":"llm"},
				{"id":"","kind":"llm"},
				{"id":"a","kind":"loop"},
				{"id":"a","kind":"llm","name":3,"config":[]},
				"x"
			],"edges":[]}`,
			want: []Issue{
				{Path: "nodes[0].id", Code: CodeRequired},
				{Path: "nodes[1].id", Code: CodeEmpty},
				{Path: "nodes[2].kind", Code: CodeInvalidEnum},
				{Path: "nodes[3].id", Code: CodeDuplicate},
				{Path: "nodes[3].name", Code: CodeInvalidType},
				{Path: "nodes[3].config", Code: CodeInvalidType},
				{Path: "nodes[4]", Code: CodeInvalidType},
			},
		},
		{
			name: "edge problems",
			src:  `{"nodes":[],"edges":[{"target":"b"},{"source":1,"target":"b","label":false}]}`,
			want: []Issue{
				{Path: "edges[0].source", Code: CodeRequired},
				{Path: "edges[1].source", Code: CodeInvalidType},
				{Path: "edges[1].label", Code: CodeInvalidType},
			},
		},
		{
			name: "edge to unknown node is allowed",
			src:  `{"nodes":[{"id":"a","kind":"input"}],"edges":[{"source":"a","target":"existing"}]}`,
		},
		{
			name: "control character in id",
			src:  `{"nodes":[{"id":"a\u0007b","kind":"input"}],"edges":[]}`,
			want: []Issue{{Path: "nodes[0].id", Code: CodeInvalidID}},
		},
		{
			name: "null optionals",
			src:  `{"name":null,"nodes":[{"id":"a","kind":"input","description":null}],"edges":[{"id":null,"source":"a","target":"a"}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Parse([]byte(tt.src), workflow.FormatJSON)
			if err != nil {
				t.Fatal(err)
			}
			got := Validate(raw)
			if len(got) != len(tt.want) {
				t.Fatalf("Validate() = %v, want %d issues", got, len(tt.want))
			}
			for i := range got {
				if got[i].Path != tt.want[i].Path || got[i].Code != tt.want[i].Code {
					t.Errorf("issue %d = %s (%s), want %s (%s)", i, got[i].Path, got[i].Code, tt.want[i].Path, tt.want[i].Code)
				}
			}
		})
	}
}

func TestDecodeReturnsIssues(t *testing.T) {
	_, err := Decode([]byte(`{"nodes":[{"id":"a"}],"edges":[]}`), workflow.FormatJSON)
	if !errors.Is(err, errors.ErrCodeInvalidPayload) {
		t.Fatalf("error = %v", err)
	}
	issues := Issues(err)
	if len(issues) != 1 || issues[0].Path != "nodes[0].kind" {
		t.Errorf("Issues() = %v", issues)
	}
}

func TestNodePayload(t *testing.T) {
	n := Node{ID: "a", Name: "Ask", Kind: workflow.KindLLM, Config: map[string]any{"model": "x"}}
	p := n.Payload()
	if p["name"] != "Ask" || p["model"] != "x" {
		t.Errorf("Payload() = %v", p)
	}
	if _, ok := n.Config["name"]; ok {
		t.Error("Payload() mutated Config")
	}
	if got := (Node{}).Payload(); got == nil {
		t.Error("Payload() of empty node is nil")
	}
}

func TestNodePayloadNamePrecedence(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantName string
		wantDesc string
	}{
		{"top level wins", `{"id":"a","kind":"llm","name":"flat","description":"d1","config":{"name":"cfg","description":"d2"}}`, "flat", "d1"},
		{"config fills gaps", `{"id":"a","kind":"llm","config":{"name":"cfg","description":"d2"}}`, "cfg", "d2"},
		{"mixed", `{"id":"a","kind":"llm","name":"flat","config":{"description":"d2"}}`, "flat", "d2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode([]byte(`{"nodes":[`+tt.src+`],"edges":[]}`), workflow.FormatJSON)
			if err != nil {
				t.Fatal(err)
			}
			got := p.Nodes[0].Payload()
			if got["name"] != tt.wantName || got["description"] != tt.wantDesc {
				t.Errorf("Payload() name=%v description=%v, want %q %q", got["name"], got["description"], tt.wantName, tt.wantDesc)
			}
		})
	}
}

func TestNodeIDs(t *testing.T) {
	p := Payload{Nodes: []Node{{ID: "a"}, {ID: "b"}}}
	if !slices.Equal(p.NodeIDs(), []string{"a", "b"}) {
		t.Errorf("NodeIDs() = %v", p.NodeIDs())
	}
}
