package refs

import (
	"slices"
	"testing"

	"github.com/matzehuels/flowmerge/pkg/workflow"
)

func TestResolve(t *testing.T) {
	m := Map{"input": "input_ab12cd34"}
	if got := m.Resolve("input"); got != "input_ab12cd34" {
		t.Errorf("Resolve(input) = %q", got)
	}
	if got := m.Resolve("existing"); got != "existing" {
		t.Errorf("Resolve(existing) = %q, want pass-through", got)
	}
	var nilMap Map
	if got := nilMap.Resolve("x"); got != "x" {
		t.Errorf("nil Map Resolve(x) = %q", got)
	}
}

func TestValue(t *testing.T) {
	m := Map{"a": "b"}
	tests := []struct {
		name string
		in   *workflow.Value
		want string
	}{
		{"nil", nil, ""},
		{"literal", workflow.Literal("a"), "a"},
		{"remapped", workflow.RefValue("a", "x"), "{{b.x}}"},
		{"unmapped", workflow.RefValue("c", "x"), "{{c.x}}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Value(tt.in, m).String(); got != tt.want {
				t.Errorf("Value() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValueDoesNotMutateInput(t *testing.T) {
	in := workflow.RefValue("a", "x")
	out := Value(in, Map{"a": "b"})
	if in.Ref.NodeID != "a" {
		t.Error("input reference was mutated")
	}
	out.Ref.Path[0] = "y"
	if in.Ref.Path[0] != "x" {
		t.Error("output shares its path with the input")
	}
}

func TestNodeRewritesEveryField(t *testing.T) {
	n := workflow.Node{
		ID:      "fetch",
		Kind:    workflow.KindHTTP,
		URL:     workflow.RefValue("input", "url"),
		Headers: []workflow.KeyValue{{Key: "X-Token", Value: workflow.RefValue("input", "token")}},
		Query:   []workflow.KeyValue{{Key: "q", Value: workflow.RefValue("input", "q")}},
		Body:    workflow.RefValue("input", "body"),
		OutputData: []workflow.OutputMapping{
			{Key: "result", Source: workflow.NewRef("input", "r")},
		},
	}
	got := Node(&n, Map{"input": "input_1"})

	var targets []string
	for _, r := range Collect(&got) {
		targets = append(targets, r.Ref.NodeID)
	}
	want := slices.Repeat([]string{"input_1"}, 5)
	if !slices.Equal(targets, want) {
		t.Errorf("rewritten targets = %v, want %v", targets, want)
	}
	for _, r := range Collect(&n) {
		if r.Ref.NodeID != "input" {
			t.Errorf("original node mutated at %s", r.Field)
		}
	}
}

func TestUnresolved(t *testing.T) {
	nodes := []workflow.Node{
		{ID: "a", Body: workflow.RefValue("b")},
		{ID: "c", URL: workflow.RefValue("existing"), Body: workflow.RefValue("ghost")},
	}
	got := Unresolved(nodes, map[string]bool{"existing": true})
	if len(got) != 2 {
		t.Fatalf("Unresolved() = %v, want 2 refs", got)
	}
	if got[0].Ref.NodeID != "b" || got[1].Ref.NodeID != "ghost" {
		t.Errorf("Unresolved() = %v", got)
	}
}
