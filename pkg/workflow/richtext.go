package workflow

// Rich-text node types produced by the compiler.
const (
	DocType       = "doc"
	ParagraphType = "paragraph"
	TextType      = "text"
)

// TemplateTypeTiptap is the only template encoding the editor understands.
const TemplateTypeTiptap = "tiptap"

// RichText is a node of the editor's rich-text document tree. A document is
// a RichText of type "doc" whose content holds block nodes.
type RichText struct {
	Type    string           `json:"type" yaml:"type"`
	Attrs   map[string]any   `json:"attrs,omitempty" yaml:"attrs,omitempty"`
	Marks   []map[string]any `json:"marks,omitempty" yaml:"marks,omitempty"`
	Text    *string          `json:"text,omitempty" yaml:"text,omitempty"`
	Content []*RichText      `json:"content,omitempty" yaml:"content,omitempty"`
}

// TextDoc wraps s in a document with a single paragraph holding one text
// node, the exact shape the editor expects for plain prompt text.
func TextDoc(s string) *RichText {
	text := s
	return &RichText{
		Type: DocType,
		Content: []*RichText{{
			Type:    ParagraphType,
			Content: []*RichText{{Type: TextType, Text: &text}},
		}},
	}
}

// EmptyDoc returns a document with one empty paragraph.
func EmptyDoc() *RichText {
	return &RichText{Type: DocType, Content: []*RichText{{Type: ParagraphType}}}
}

// PlainText concatenates all text nodes, separating blocks with newlines.
func (r *RichText) PlainText() string {
	if r == nil {
		return ""
	}
	if r.Text != nil {
		return *r.Text
	}
	s := ""
	for i, c := range r.Content {
		if i > 0 && r.Type == DocType {
			s += "\n"
		}
		s += c.PlainText()
	}
	return s
}

// Clone returns a deep copy of r.
func (r *RichText) Clone() *RichText {
	if r == nil {
		return nil
	}
	out := &RichText{Type: r.Type}
	if r.Attrs != nil {
		out.Attrs = cloneMap(r.Attrs)
	}
	if r.Marks != nil {
		out.Marks = make([]map[string]any, len(r.Marks))
		for i, m := range r.Marks {
			out.Marks[i] = cloneMap(m)
		}
	}
	if r.Text != nil {
		t := *r.Text
		out.Text = &t
	}
	if r.Content != nil {
		out.Content = make([]*RichText, len(r.Content))
		for i, c := range r.Content {
			out.Content[i] = c.Clone()
		}
	}
	return out
}

// Template is a Template-node body.
type Template struct {
	Type   string    `json:"type" yaml:"type"`
	Tiptap *RichText `json:"tiptap" yaml:"tiptap"`
}

// TiptapTemplate wraps a document as a tiptap template.
func TiptapTemplate(doc *RichText) *Template {
	return &Template{Type: TemplateTypeTiptap, Tiptap: doc}
}

// Clone returns a deep copy of t.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	return &Template{Type: t.Type, Tiptap: t.Tiptap.Clone()}
}
