package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowmerge/pkg/errors"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

const triage = `{
  "name": "Support triage",
  "nodes": [
    {"id": "input", "kind": "input", "name": "Ticket"},
    {"id": "classify", "kind": "llm", "name": "Classify"},
    {"id": "out", "kind": "output"}
  ],
  "edges": [
    {"source": "input", "target": "classify"},
    {"source": "classify", "target": "out"}
  ]
}`

// testCLI runs commands against a file store in a temp dir with caching
// disabled and the in-process layered engine.
type testCLI struct {
	t      *testing.T
	dir    string
	config string
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	for _, env := range []string{"FLOWMERGE_STORE", "FLOWMERGE_STORE_DSN", "FLOWMERGE_CACHE", "FLOWMERGE_LAYOUT_ENGINE"} {
		t.Setenv(env, "")
	}
	dir := t.TempDir()
	config := filepath.Join(dir, "config.toml")
	body := `
[store]
backend = "file"
dir = "` + filepath.ToSlash(filepath.Join(dir, "workflows")) + `"

[cache]
backend = "none"

[layout]
engine = "layered"
`
	if err := os.WriteFile(config, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return &testCLI{t: t, dir: dir, config: config}
}

func (tc *testCLI) write(name, content string) string {
	tc.t.Helper()
	path := filepath.Join(tc.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		tc.t.Fatal(err)
	}
	return path
}

// run executes one command line and returns what it wrote to the command
// output.
func (tc *testCLI) run(args ...string) (string, error) {
	tc.t.Helper()
	var out, logs bytes.Buffer
	c := New(&logs, log.InfoLevel)
	c.out = &out
	root := c.RootCommand()
	root.SetArgs(append([]string{"--config", tc.config}, args...))
	root.SetOut(&out)
	root.SetErr(&logs)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	tc := newTestCLI(t)

	if _, err := tc.run("validate", tc.write("good.json", triage)); err != nil {
		t.Errorf("valid candidate: %v", err)
	}

	bad := tc.write("bad.json", `{"nodes": [{"id": "a", "kind": "robot"}], "edges": []}`)
	_, err := tc.run("validate", bad)
	if !errors.Is(err, errors.ErrCodeInvalidPayload) {
		t.Errorf("invalid candidate err = %v, want INVALID_PAYLOAD", err)
	}
}

func TestImportAndGet(t *testing.T) {
	tc := newTestCLI(t)
	path := tc.write("triage.json", triage)

	if _, err := tc.run("import", path); err != nil {
		t.Fatalf("import: %v", err)
	}

	out, err := tc.run("store", "get", "triage")
	if err != nil {
		t.Fatalf("store get: %v", err)
	}
	doc, err := workflow.Unmarshal([]byte(out), workflow.FormatJSON)
	if err != nil {
		t.Fatalf("decode stored workflow: %v\n%s", err, out)
	}
	if doc.Name != "Support triage" || len(doc.Nodes) != 3 || len(doc.Drafts()) != 0 {
		t.Errorf("stored = %q with %d nodes, %d drafts", doc.Name, len(doc.Nodes), len(doc.Drafts()))
	}

	if _, err := tc.run("import", path); !errors.Is(err, errors.ErrCodeConflict) {
		t.Errorf("second import err = %v, want CONFLICT", err)
	}
}

func TestMergeReviewRender(t *testing.T) {
	tc := newTestCLI(t)
	path := tc.write("triage.json", triage)

	if _, err := tc.run("merge", path, "--into", "wf"); err != nil {
		t.Fatalf("merge: %v", err)
	}

	out, err := tc.run("store", "list")
	if err != nil {
		t.Fatalf("store list: %v", err)
	}
	if !strings.Contains(out, "wf") || !strings.Contains(out, "3 drafts") {
		t.Errorf("list = %q", out)
	}

	if _, err := tc.run("review", "wf", "--reject", "out", "--accept", "input,classify"); err != nil {
		t.Fatalf("review: %v", err)
	}

	out, err = tc.run("render", "wf")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(out, "digraph") || !strings.Contains(out, `"input" -> "classify"`) {
		t.Errorf("dot = %s", out)
	}
	if strings.Contains(out, `"out"`) {
		t.Error("rejected node should not be rendered")
	}
	if strings.Contains(out, "dashed") {
		t.Error("accepted nodes should not be drawn as drafts")
	}
}

func TestReviewRejectsConflictingFlags(t *testing.T) {
	tc := newTestCLI(t)
	if _, err := tc.run("merge", tc.write("t.json", triage), "--into", "wf"); err != nil {
		t.Fatal(err)
	}
	_, err := tc.run("review", "wf", "--accept", "input", "--reject", "input")
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
}

func TestStoreDelete(t *testing.T) {
	tc := newTestCLI(t)
	if _, err := tc.run("import", tc.write("wf.json", triage)); err != nil {
		t.Fatal(err)
	}
	if _, err := tc.run("store", "delete", "wf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := tc.run("store", "get", "wf"); !errors.IsNotFound(err) {
		t.Errorf("get after delete err = %v, want not found", err)
	}
}

func TestPromptCommand(t *testing.T) {
	tc := newTestCLI(t)
	tools := tc.write("tools.yaml", `
- id: search
  type: mcp-tool
  serverId: srv-1
  serverName: web
  description: Search the web
`)
	out, err := tc.run("prompt", "--tools", tools)
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if !strings.Contains(out, "<tool_catalog>") || !strings.Contains(out, "search") {
		t.Errorf("prompt = %s", out)
	}
}

func TestImportCompletesToolsFromConfiguredCatalog(t *testing.T) {
	tc := newTestCLI(t)
	tools := tc.write("tools.yaml", `
- id: search
  type: mcp-tool
  serverId: srv-1
  serverName: web
  description: Search the web
`)
	f, err := os.OpenFile(tc.config, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprintf(f, "\n[merge]\ntools = %q\n", filepath.ToSlash(tools))
	f.Close()

	path := tc.write("lookup.json", `{"nodes":[{"id":"t","kind":"tool","config":{"tool":{"id":"search"}}}],"edges":[]}`)
	if _, err := tc.run("import", path); err != nil {
		t.Fatalf("import: %v", err)
	}
	out, err := tc.run("store", "get", "lookup")
	if err != nil {
		t.Fatalf("store get: %v", err)
	}
	doc, err := workflow.Unmarshal([]byte(out), workflow.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	n, ok := doc.Node("t")
	if !ok || n.Tool == nil {
		t.Fatalf("tool node missing: %s", out)
	}
	if n.Tool.Description != "Search the web" || n.Tool.ServerName != "web" {
		t.Errorf("tool = %+v, want catalog entry", *n.Tool)
	}
}

func TestReadInput(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "c.yml")
	if err := os.WriteFile(yamlPath, []byte("nodes: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		path       string
		format     string
		wantFormat string
		wantErr    bool
	}{
		{"extension", yamlPath, "", workflow.FormatYAML, false},
		{"flag wins", yamlPath, "json", workflow.FormatJSON, false},
		{"yml alias", yamlPath, "yml", workflow.FormatYAML, false},
		{"unknown format", yamlPath, "toml", "", true},
		{"missing file", filepath.Join(dir, "nope.json"), "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, format, err := readInput(context.Background(), tt.path, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if format != tt.wantFormat {
				t.Errorf("format = %q, want %q", format, tt.wantFormat)
			}
		})
	}
}

func TestWorkflowIDFromPath(t *testing.T) {
	tests := map[string]string{
		"triage.json":         "triage",
		"/tmp/flows/ops.yaml": "ops",
		"-":                   "",
		"no-extension":        "no-extension",
	}
	for in, want := range tests {
		if got := workflowIDFromPath(in); got != want {
			t.Errorf("workflowIDFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCompletionCommand(t *testing.T) {
	tc := newTestCLI(t)
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		out, err := tc.run("completion", shell)
		if err != nil {
			t.Fatalf("completion %s: %v", shell, err)
		}
		if !strings.Contains(out, "flowmerge") {
			t.Errorf("completion %s does not mention the command", shell)
		}
	}
	if _, err := tc.run("completion", "tcsh"); err == nil {
		t.Error("unknown shell should fail")
	}
}
