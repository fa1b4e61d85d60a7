package workflow

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document encodings.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// FormatFromPath infers the encoding from a file extension, defaulting to JSON.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Marshal encodes a document as indented JSON or YAML.
func Marshal(d *Document, format string) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(d)
	case FormatJSON, "":
		return json.MarshalIndent(d, "", "  ")
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// Unmarshal decodes a document. Nil node and edge lists become empty lists.
func Unmarshal(data []byte, format string) (*Document, error) {
	var d Document
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatJSON, "":
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	if d.Nodes == nil {
		d.Nodes = []Node{}
	}
	if d.Edges == nil {
		d.Edges = []Edge{}
	}
	return &d, nil
}

// Read decodes a JSON document from r.
func Read(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data, FormatJSON)
}

// Write encodes d as indented JSON to w.
func Write(w io.Writer, d *Document) error {
	data, err := Marshal(d, FormatJSON)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// ReadFile loads a document, picking the encoding from the extension.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data, FormatFromPath(path))
}

// WriteFile stores a document, picking the encoding from the extension.
func WriteFile(path string, d *Document) error {
	data, err := Marshal(d, FormatFromPath(path))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
