package materialize

import (
	"encoding/json"
	"slices"
	"sort"
	"strings"

	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// The helpers below turn loosely typed candidate values into workflow
// types. Each returns ok=false instead of failing, so a bad field falls back
// to the kind default.

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case workflow.Schema:
		return m, true
	}
	return nil, false
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []map[string]any:
		out := make([]any, len(s))
		for i, m := range s {
			out[i] = m
		}
		return out, true
	case []string:
		out := make([]any, len(s))
		for i, str := range s {
			out[i] = str
		}
		return out, true
	}
	return nil, false
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// asPath accepts a list of strings. A single string is split on dots.
func asPath(v any) ([]string, bool) {
	if v == nil {
		return []string{}, true
	}
	if s, ok := v.(string); ok {
		if s == "" {
			return []string{}, true
		}
		return strings.Split(s, "."), true
	}
	items, ok := asSlice(v)
	if !ok {
		return nil, false
	}
	path := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		path = append(path, s)
	}
	return path, true
}

// sourceRef decodes {nodeId, path}.
func sourceRef(v any) (*workflow.SourceRef, bool) {
	m, ok := asMap(v)
	if !ok {
		return nil, false
	}
	id, _ := asString(m["nodeId"])
	if id == "" {
		return nil, false
	}
	path, ok := asPath(m["path"])
	if !ok {
		return nil, false
	}
	return workflow.NewRef(id, path...), true
}

// value decodes a literal string or a source reference.
func value(v any) (*workflow.Value, bool) {
	if s, ok := asString(v); ok {
		return workflow.Literal(s), true
	}
	if ref, ok := sourceRef(v); ok {
		return &workflow.Value{Ref: ref}, true
	}
	return nil, false
}

// keyValues decodes a list of {key, value} entries or a {key: value} object
// (keys sorted). Entries without a key are skipped.
func keyValues(v any) ([]workflow.KeyValue, bool) {
	if m, ok := asMap(v); ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]workflow.KeyValue, 0, len(keys))
		for _, k := range keys {
			kv := workflow.KeyValue{Key: k}
			kv.Value, _ = value(m[k])
			out = append(out, kv)
		}
		return out, true
	}
	items, ok := asSlice(v)
	if !ok {
		return nil, false
	}
	out := make([]workflow.KeyValue, 0, len(items))
	for _, item := range items {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		key, _ := asString(m["key"])
		if key == "" {
			continue
		}
		kv := workflow.KeyValue{Key: key}
		kv.Value, _ = value(m["value"])
		out = append(out, kv)
	}
	return out, true
}

// richText decodes a plain string into a text document, or a tiptap-shaped
// object into a RichText tree.
func richText(v any) (*workflow.RichText, bool) {
	if s, ok := asString(v); ok {
		return workflow.TextDoc(s), true
	}
	m, ok := asMap(v)
	if !ok {
		return nil, false
	}
	if t, _ := asString(m["type"]); t == "" {
		return nil, false
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, false
	}
	var doc workflow.RichText
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false
	}
	return &doc, true
}

var roles = []string{workflow.RoleSystem, workflow.RoleUser, workflow.RoleAssistant}

// messages decodes LLM prompt messages. Entries without usable content are
// skipped; unknown roles become "user".
func messages(v any) ([]workflow.Message, bool) {
	items, ok := asSlice(v)
	if !ok {
		return nil, false
	}
	out := make([]workflow.Message, 0, len(items))
	for _, item := range items {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		content, ok := richText(m["content"])
		if !ok {
			continue
		}
		role, _ := asString(m["role"])
		role = strings.ToLower(role)
		if !slices.Contains(roles, role) {
			role = workflow.RoleUser
		}
		out = append(out, workflow.Message{Role: role, Content: content})
	}
	return out, true
}

// template decodes a string, a {type:"tiptap", tiptap} object, or a bare
// document.
func template(v any) (*workflow.Template, bool) {
	if m, ok := asMap(v); ok {
		if inner, ok := m["tiptap"]; ok {
			doc, ok := richText(inner)
			if !ok {
				return nil, false
			}
			return workflow.TiptapTemplate(doc), true
		}
	}
	doc, ok := richText(v)
	if !ok {
		return nil, false
	}
	return workflow.TiptapTemplate(doc), true
}

// outputs decodes {key, source{nodeId,path}} and {key, sourceNodeId,
// sourcePath} entries. Entries without a key are skipped; an entry whose
// source cannot be decoded keeps its key with no source.
func outputs(v any) ([]workflow.OutputMapping, bool) {
	items, ok := asSlice(v)
	if !ok {
		return nil, false
	}
	out := make([]workflow.OutputMapping, 0, len(items))
	for _, item := range items {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		key, _ := asString(m["key"])
		if key == "" {
			continue
		}
		o := workflow.OutputMapping{Key: key}
		if ref, ok := sourceRef(m["source"]); ok {
			o.Source = ref
		} else if id, _ := asString(m["sourceNodeId"]); id != "" {
			if path, ok := asPath(m["sourcePath"]); ok {
				o.Source = workflow.NewRef(id, path...)
			} else {
				o.Source = workflow.NewRef(id)
			}
		}
		out = append(out, o)
	}
	return out, true
}

// position decodes {x, y}; both coordinates must be numbers.
func position(v any) (*workflow.Position, bool) {
	m, ok := asMap(v)
	if !ok {
		return nil, false
	}
	x, okX := asNumber(m["x"])
	y, okY := asNumber(m["y"])
	if !okX || !okY {
		return nil, false
	}
	return &workflow.Position{X: x, Y: y}, true
}

// schema accepts a candidate output schema only when it passes
// [workflow.Schema.Validate].
func schema(v any) (workflow.Schema, bool) {
	m, ok := asMap(v)
	if !ok {
		return nil, false
	}
	s := workflow.Schema(workflow.CloneMap(m))
	if s.Validate() != nil {
		return nil, false
	}
	return s, true
}

func method(v any) (string, bool) {
	s, ok := asString(v)
	if !ok {
		return "", false
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	if !slices.Contains(workflow.HTTPMethods, s) {
		return "", false
	}
	return s, true
}
