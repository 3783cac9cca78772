package ingestion

import (
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// ParseMarkdown reads a Markdown manuscript. The first level-1 heading is the
// title. A heading mentioning methods, statistics or reproducibility opens a
// section that runs until the next heading of the same or a higher level;
// deeper headings are folded into it. Without such a heading the whole text
// goes through ExtractMethods.
func ParseMarkdown(data []byte) *Document {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	root := markdown.Parse(data, p)

	doc := &Document{Format: "markdown", Isolated: true}

	var (
		current *Section
		level   int
		buf     []string
	)
	flush := func() {
		if current != nil {
			current.Content = strings.Join(buf, "\n")
			doc.Sections = append(doc.Sections, *current)
		}
		current, buf = nil, nil
	}

	for _, child := range root.GetChildren() {
		if h, ok := child.(*ast.Heading); ok {
			title := collapseSpace(nodeText(h))
			if h.Level == 1 && doc.Title == "" {
				doc.Title = title
			}
			if current != nil && h.Level > level {
				buf = append(buf, title)
				continue
			}
			flush()
			if kind, ok := classifyHeading(title); ok {
				current = &Section{Kind: kind, Title: title}
				level = h.Level
			}
			continue
		}
		if current != nil {
			if t := strings.TrimSpace(nodeText(child)); t != "" {
				buf = append(buf, t)
			}
		}
	}
	flush()

	if len(doc.Sections) == 0 {
		fallback := ParseLayoutText(doc.Title, string(data))
		fallback.Format = "markdown"
		return fallback
	}
	return doc
}

// nodeText concatenates the literal text below n, separating block children
// with newlines.
func nodeText(n ast.Node) string {
	var b strings.Builder
	ast.WalkFunc(n, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			if _, ok := node.(*ast.Paragraph); ok {
				b.WriteByte('\n')
			}
			return ast.GoToNext
		}
		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Literal)
		case *ast.Code:
			b.Write(v.Literal)
		case *ast.Softbreak, *ast.Hardbreak:
			b.WriteByte(' ')
		}
		return ast.GoToNext
	})
	return b.String()
}
