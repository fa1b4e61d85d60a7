package workflow

import (
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/flowmerge/pkg/errors"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"input", KindInput, false},
		{"LLM", KindLLM, false},
		{"Http", KindHTTP, false},
		{" output ", KindOutput, false},
		{"note", KindNote, false},
		{"loop", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidKind) {
				t.Errorf("error code = %v", errors.GetCode(err))
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTextDocShape(t *testing.T) {
	data, err := json.Marshal(TextDoc("Summarize {{input.result}}"))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"Summarize {{input.result}}"}]}]}`
	if string(data) != want {
		t.Errorf("TextDoc JSON =\n%s\nwant\n%s", data, want)
	}
	if got := TextDoc("hi").PlainText(); got != "hi" {
		t.Errorf("PlainText() = %q", got)
	}
}

func TestTextDocEmptyStringKeepsTextNode(t *testing.T) {
	data, _ := json.Marshal(TextDoc(""))
	if !strings.Contains(string(data), `"text":""`) {
		t.Errorf("TextDoc(\"\") dropped the text field: %s", data)
	}
}

func TestValueJSON(t *testing.T) {
	var lit Value
	if err := json.Unmarshal([]byte(`"https://example.com"`), &lit); err != nil {
		t.Fatal(err)
	}
	if lit.IsRef() || lit.Literal != "https://example.com" {
		t.Errorf("literal decoded as %+v", lit)
	}

	var ref Value
	if err := json.Unmarshal([]byte(`{"nodeId":"input","path":["query"]}`), &ref); err != nil {
		t.Fatal(err)
	}
	if !ref.IsRef() || ref.Ref.NodeID != "input" || !slices.Equal(ref.Ref.Path, []string{"query"}) {
		t.Errorf("reference decoded as %+v", ref)
	}
	data, _ := json.Marshal(ref)
	if string(data) != `{"nodeId":"input","path":["query"]}` {
		t.Errorf("reference encoded as %s", data)
	}

	var bad Value
	if err := json.Unmarshal([]byte(`42`), &bad); err == nil {
		t.Error("number accepted as value")
	}
}

func TestNewRefNeverNilPath(t *testing.T) {
	data, _ := json.Marshal(NewRef("n"))
	if string(data) != `{"nodeId":"n","path":[]}` {
		t.Errorf("NewRef JSON = %s", data)
	}
}

func TestDefaultOutputSchemaIsFresh(t *testing.T) {
	a := DefaultOutputSchema()
	b := DefaultOutputSchema()
	a["properties"].(map[string]any)["x"] = map[string]any{"type": "string"}
	if len(b["properties"].(map[string]any)) != 0 {
		t.Error("DefaultOutputSchema() instances share state")
	}
	if err := b.Validate(); err != nil {
		t.Errorf("default schema invalid: %v", err)
	}
}

func TestSchemaValidate(t *testing.T) {
	tests := []struct {
		name    string
		schema  Schema
		wantErr bool
	}{
		{"default", DefaultOutputSchema(), false},
		{"no type", Schema{"properties": map[string]any{}}, false},
		{"type list", Schema{"type": []any{"object", "null"}}, false},
		{"empty", Schema{}, true},
		{"nil", nil, true},
		{"numeric type", Schema{"type": 3.0}, true},
		{"mixed type list", Schema{"type": []any{"object", 1.0}}, true},
		{"properties not object", Schema{"type": "object", "properties": "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.schema.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func httpNode() Node {
	return Node{
		ID:   "fetch",
		Kind: KindHTTP,
		URL:  RefValue("input", "url"),
		Headers: []KeyValue{
			{Key: "Accept", Value: Literal("application/json")},
			{Key: "Authorization", Value: RefValue("secrets", "token")},
		},
		Query:      []KeyValue{{Key: "q", Value: RefValue("input", "q")}},
		Body:       RefValue("llm", "text"),
		OutputData: []OutputMapping{{Key: "result", Source: NewRef("llm", "text")}},
	}
}

func TestVisitRefsOrder(t *testing.T) {
	n := httpNode()
	var fields []string
	n.VisitRefs(func(field string, ref *SourceRef) *SourceRef {
		fields = append(fields, field)
		return ref
	})
	want := []string{"url", "headers[1].value", "query[0].value", "body", "outputData[0].source"}
	if !slices.Equal(fields, want) {
		t.Errorf("VisitRefs fields = %v, want %v", fields, want)
	}
}

func TestVisitRefsClear(t *testing.T) {
	n := httpNode()
	n.VisitRefs(func(string, *SourceRef) *SourceRef { return nil })
	if n.URL != nil || n.Body != nil || n.Headers[1].Value != nil || n.OutputData[0].Source != nil {
		t.Errorf("VisitRefs did not clear references: %+v", n)
	}
	if n.Headers[0].Value == nil || n.Headers[0].Value.Literal != "application/json" {
		t.Error("VisitRefs touched a literal value")
	}
}

func TestNodeCloneIsDeep(t *testing.T) {
	n := httpNode()
	n.OutputSchema = DefaultOutputSchema()
	n.Position = &Position{X: 1, Y: 2}
	c := n.Clone()

	c.URL.Ref.NodeID = "changed"
	c.Headers[1].Value.Ref.Path[0] = "changed"
	c.OutputSchema["type"] = "string"
	c.Position.X = 99

	if n.URL.Ref.NodeID != "input" || n.Headers[1].Value.Ref.Path[0] != "token" {
		t.Error("Clone() shares references")
	}
	if n.OutputSchema["type"] != "object" || n.Position.X != 1 {
		t.Error("Clone() shares schema or position")
	}
}

func draftDoc() *Document {
	d := NewDocument("wf", "test")
	d.Nodes = []Node{
		{ID: "input", Kind: KindInput},
		{ID: "llm", Kind: KindLLM, GeneratedByAI: true, Runtime: Runtime{IsNew: true}},
		{ID: "out", Kind: KindOutput, GeneratedByAI: true, Runtime: Runtime{IsNew: true},
			OutputData: []OutputMapping{{Key: "answer", Source: NewRef("llm", "text")}}},
	}
	d.Edges = []Edge{
		{ID: "e1", Source: "input", Target: "llm"},
		{ID: "e2", Source: "llm", Target: "out"},
	}
	return d
}

func TestAcceptDrafts(t *testing.T) {
	d := draftDoc()
	if got := d.AcceptDrafts("llm"); got != 1 {
		t.Errorf("AcceptDrafts(llm) = %d, want 1", got)
	}
	if !slices.Equal(d.Drafts(), []string{"out"}) {
		t.Errorf("Drafts() = %v", d.Drafts())
	}
	n, _ := d.Node("llm")
	if !n.GeneratedByAI {
		t.Error("AcceptDrafts cleared generatedByAI")
	}
	if got := d.AcceptDrafts(); got != 1 {
		t.Errorf("AcceptDrafts() = %d, want 1", got)
	}
}

func TestRejectDrafts(t *testing.T) {
	d := draftDoc()
	report := d.RejectDrafts("llm", "input")

	if !slices.Equal(report.RemovedNodes, []string{"llm"}) {
		t.Errorf("RemovedNodes = %v (non-drafts must be kept)", report.RemovedNodes)
	}
	if !slices.Equal(report.RemovedEdges, []string{"e1", "e2"}) {
		t.Errorf("RemovedEdges = %v", report.RemovedEdges)
	}
	if len(report.ClearedRefs) != 1 || report.ClearedRefs[0].Field != "outputData[0].source" {
		t.Errorf("ClearedRefs = %v", report.ClearedRefs)
	}
	if len(d.DanglingRefs()) != 0 {
		t.Errorf("DanglingRefs() after reject = %v", d.DanglingRefs())
	}
}

func TestDanglingRefs(t *testing.T) {
	nodes := []Node{httpNode(), {ID: "input"}}
	got := DanglingRefs(nodes)
	var targets []string
	for _, r := range got {
		targets = append(targets, r.Ref.NodeID)
	}
	if !slices.Equal(targets, []string{"secrets", "llm", "llm"}) {
		t.Errorf("DanglingRefs targets = %v", targets)
	}
}

func TestCheckAcyclic(t *testing.T) {
	nodes := []Node{{ID: "a"}, {ID: "b"}}
	if err := CheckAcyclic(nodes, []Edge{{Source: "a", Target: "b"}}); err != nil {
		t.Errorf("CheckAcyclic(a->b) = %v", err)
	}
	err := CheckAcyclic(nodes, []Edge{{Source: "b", Target: "b"}})
	if !errors.Is(err, errors.ErrCodeGraphCycle) {
		t.Errorf("CheckAcyclic(self loop) = %v, want GRAPH_CYCLE", err)
	}
}

func TestUnmarshalYAML(t *testing.T) {
	src := `
id: wf
name: demo
nodes:
  - id: fetch
    kind: http
    name: Fetch
    method: POST
    url: https://api.example.com
    body:
      nodeId: input
      path: [payload]
edges: []
`
	d, err := Unmarshal([]byte(src), FormatYAML)
	if err != nil {
		t.Fatal(err)
	}
	n := d.Nodes[0]
	if n.URL == nil || n.URL.Literal != "https://api.example.com" {
		t.Errorf("url = %+v", n.URL)
	}
	if !n.Body.IsRef() || n.Body.Ref.NodeID != "input" {
		t.Errorf("body = %+v", n.Body)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]string{
		"wf.json": FormatJSON,
		"wf.yaml": FormatYAML,
		"wf.YML":  FormatYAML,
		"wf":      FormatJSON,
	}
	for path, want := range tests {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}
