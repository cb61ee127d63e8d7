package doctree

import "strings"

// DocTree is the root of a parsed document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     // Section heading (empty for leaf text)
	Text     string     // Text content of this node (may be empty for container nodes)
	Page     int        // Source page (0 if N/A)
	Children []*DocNode // Subsections
}

// Chunk is a sized text segment ready for event extraction.
type Chunk struct {
	Text  string // Chunk text content
	Index int    // Sequence number within document
}

// PlainText flattens the tree into UTF-8 text in document order. Section
// headings are emitted on their own line ahead of their content so dates in
// headings reach the model.
func (t *DocTree) PlainText() string {
	if t == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(nodes []*DocNode)
	walk = func(nodes []*DocNode) {
		for _, n := range nodes {
			for _, s := range []string{n.Title, n.Text} {
				s = strings.TrimSpace(s)
				if s == "" {
					continue
				}
				if sb.Len() > 0 {
					sb.WriteString("\n\n")
				}
				sb.WriteString(s)
			}
			walk(n.Children)
		}
	}
	walk(t.Children)
	return sb.String()
}
