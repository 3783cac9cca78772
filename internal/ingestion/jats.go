package ingestion

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/turtacn/RigorAudit/pkg/errors"
)

// xmlNode is a minimal element tree; text nodes have an empty name.
type xmlNode struct {
	name     string
	attrs    []xml.Attr
	data     string
	children []*xmlNode
}

func (n *xmlNode) attr(name string) string {
	for _, a := range n.attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// text concatenates every descendant text node.
func (n *xmlNode) text() string {
	var b strings.Builder
	var walk func(*xmlNode)
	walk = func(x *xmlNode) {
		if x.name == "" {
			b.WriteString(x.data)
			return
		}
		for _, c := range x.children {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func (n *xmlNode) firstChild(name string) *xmlNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// find returns descendants named name, not descending into matches.
func (n *xmlNode) find(name string) []*xmlNode {
	var out []*xmlNode
	for _, c := range n.children {
		if c.name == name {
			out = append(out, c)
			continue
		}
		out = append(out, c.find(name)...)
	}
	return out
}

func parseXMLTree(r io.Reader) (*xmlNode, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity

	root := &xmlNode{name: "#document"}
	stack := []*xmlNode{root}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeIngestMalformed, "invalid article XML")
		}
		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			el := &xmlNode{name: t.Name.Local, attrs: t.Attr}
			top.children = append(top.children, el)
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			top.children = append(top.children, &xmlNode{data: string(t)})
		}
	}
	if len(root.children) == 0 {
		return nil, errors.New(errors.ErrCodeIngestMalformed, "article XML has no elements")
	}
	return root, nil
}

// ParseJATS reads a PMC JATS article. Every sec whose title mentions methods,
// statistics or reproducibility is captured with the text of all its
// paragraphs; nested matching subsections are not captured twice.
func ParseJATS(r io.Reader) (*Document, error) {
	root, err := parseXMLTree(r)
	if err != nil {
		return nil, err
	}

	doc := &Document{Format: "jats", Isolated: true}
	if titles := root.find("article-title"); len(titles) > 0 {
		doc.Title = collapseSpace(titles[0].text())
	}
	for _, id := range root.find("article-id") {
		if t := id.attr("pub-id-type"); t == "pmc" || t == "pmcid" {
			doc.PMCID = strings.TrimSpace(id.text())
			break
		}
	}

	var walk func(*xmlNode)
	walk = func(n *xmlNode) {
		for _, sec := range n.find("sec") {
			title := ""
			if t := sec.firstChild("title"); t != nil {
				title = collapseSpace(t.text())
			}
			if kind, ok := classifyHeading(title); ok {
				var paras []string
				for _, p := range sec.find("p") {
					paras = append(paras, strings.TrimSpace(p.text()))
				}
				doc.Sections = append(doc.Sections, Section{Kind: kind, Title: title, Content: strings.Join(paras, "\n")})
				continue
			}
			walk(sec)
		}
	}
	walk(root)
	return doc, nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
