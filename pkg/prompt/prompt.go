// Package prompt builds the system prompt that asks a language model to
// emit a workflow candidate.
//
// The prompt has three tagged sections: the candidate type definitions
// the decoder accepts, the tool catalog the model may wire into Tool
// nodes, and the compiler rules. Output is deterministic for a given
// catalog, so it can be diffed and cached.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// NoTools is the catalog line used when no tools are available.
const NoTools = "- No active tools; rely on LLM and HTTP nodes only."

const typeDefinitions = `type SourceRef = {
  nodeId: string;
  path: string[]; // keys into the source node's outputSchema
};

type CandidateNode = {
  id: string; // unique within the candidate
  kind: "input" | "llm" | "condition" | "note" | "tool" | "http" | "template" | "output";
  name?: string;
  description?: string;
  config?: {
    position?: { x: number; y: number }; // optional; layout is recomputed
    outputSchema?: Record<string, unknown>; // JSON schema of the node's output
    // kind-specific fields, also accepted next to id and kind:
    messages?: { role: "system" | "user" | "assistant"; content: string }[]; // llm, tool
    model?: Record<string, unknown>; // llm
    branches?: Record<string, unknown>; // condition
    toolId?: string; // tool: catalog id or serverName:id
    url?: string | SourceRef; // http
    method?: "GET" | "POST" | "PUT" | "DELETE" | "PATCH" | "HEAD";
    headers?: { key: string; value?: string | SourceRef }[];
    query?: { key: string; value?: string | SourceRef }[];
    body?: string | SourceRef;
    timeout?: number; // http, milliseconds
    template?: string | { type: "tiptap"; tiptap: Record<string, unknown> };
    outputData?: { key: string; source?: SourceRef }[]; // output
  };
};

type CandidateEdge = {
  id?: string;
  source: string; // node id
  target: string; // node id
  sourceHandle?: "if" | "elseif" | "else" | "right";
  targetHandle?: string;
  label?: string;
};

type Candidate = {
  name?: string;
  description?: string;
  nodes: CandidateNode[];
  edges: CandidateEdge[];
};`

var rules = []string{
	"Always include an input node as the first producer of data and an output node that emits the final results.",
	"Build coherent paths: edges follow data dependencies and should not form cycles.",
	"Reference upstream data in llm, template and http text with {{node_id.path}} placeholders, and with SourceRef objects in structured fields.",
	"Use tools only from the catalog above; never invent a tool id.",
	"Give every node a realistic outputSchema that mirrors the data it produces.",
	"Every non-input node needs a reachable data source, and every edge must name node ids from the same candidate.",
	"Keep ids short, stable and descriptive (kebab-case is fine); colliding ids are renamed on merge.",
	"Nodes are merged as drafts for human review, so prefer a complete first version over a minimal one.",
	"Suggest the next logical step after each node (for example search, then summarize, then post).",
	"Keep each llm message well scoped and free of ambiguity.",
}

// Build renders the compiler prompt for a tool catalog.
func Build(tools []workflow.CatalogTool) string {
	var b strings.Builder
	b.WriteString("You are the Workflow Compiler. Turn the user's goal into a workflow graph of nodes and edges that the workflow engine can run.\n\n")

	b.WriteString("<type_definitions>\n")
	b.WriteString(typeDefinitions)
	b.WriteString("\n</type_definitions>\n\n")

	b.WriteString("<tool_catalog>\n")
	if len(tools) == 0 {
		b.WriteString(NoTools)
	}
	for i, t := range tools {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(formatTool(t))
	}
	b.WriteString("\n</tool_catalog>\n\n")

	b.WriteString("<rules>\n")
	for _, r := range rules {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	b.WriteString("</rules>\n\n")

	b.WriteString("Output strict JSON matching Candidate with valid node ids and edge references. Do not include any prose outside of the JSON.")
	return b.String()
}

// QualifiedID is the name a tool is listed under: "serverName:id" when
// the tool belongs to a named server, the bare id otherwise.
func QualifiedID(t workflow.CatalogTool) string {
	if t.ServerName != "" {
		return t.ServerName + ":" + t.ID
	}
	return t.ID
}

func formatTool(t workflow.CatalogTool) string {
	typ := t.Type
	if typ == "" {
		typ = workflow.ToolTypeMCP
	}
	if t.ServerName != "" {
		typ += " · serverId=" + t.ServerID
	}
	desc := t.Description
	if desc == "" {
		desc = "no description"
	}
	return fmt.Sprintf("- %s (%s): %s\n  schema: %s", QualifiedID(t), typ, desc, schemaJSON(t.ParameterSchema))
}

func schemaJSON(schema map[string]any) string {
	if schema == nil {
		schema = map[string]any{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(schema); err != nil {
		return "{}"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// ParseTools decodes a tool catalog from a JSON or YAML list.
func ParseTools(data []byte, format string) ([]workflow.CatalogTool, error) {
	var tools []workflow.CatalogTool
	switch format {
	case workflow.FormatYAML:
		if err := yaml.Unmarshal(data, &tools); err != nil {
			return nil, fmt.Errorf("decode tool catalog: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &tools); err != nil {
			return nil, fmt.Errorf("decode tool catalog: %w", err)
		}
	}
	for i, t := range tools {
		if t.ID == "" {
			return nil, fmt.Errorf("tool %d has no id", i)
		}
	}
	return tools, nil
}

// ReadTools loads a tool catalog file, choosing the format by extension.
func ReadTools(path string) ([]workflow.CatalogTool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTools(data, workflow.FormatFromPath(path))
}
