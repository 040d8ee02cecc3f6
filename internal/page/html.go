package page

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// LoadHTML parses page markup into the document tree. Parser-inserted
// scripts keep their document order; Run executes them in that order.
func (p *Page) LoadHTML(content string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to parse page HTML: %w", err)
	}

	sel := doc.Find("html")
	if len(sel.Nodes) == 0 {
		return fmt.Errorf("no html root in document")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	root := p.buildElement(sel.Nodes[0])
	root.markAttached()
	p.document.root = root
	if p.document.Head() == nil {
		root.AddChild(newElement("head"))
	}
	if p.document.Body() == nil {
		root.AddChild(newElement("body"))
	}
	return nil
}

func (p *Page) buildElement(n *html.Node) *Element {
	el := newElement(n.Data)
	for _, attr := range n.Attr {
		switch attr.Key {
		case "id":
			el.ID = attr.Val
		case "class":
			el.ClassName = attr.Val
		}
		el.SetAttribute(attr.Key, attr.Val)
	}
	if el.IsScript() {
		el.Src = el.Attributes["src"]
	}

	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.ElementNode:
			child := p.buildElement(c)
			child.Parent = el
			el.Children = append(el.Children, child)
		case html.TextNode:
			text.WriteString(c.Data)
		}
	}
	el.TextContent = strings.TrimSpace(text.String())
	return el
}
