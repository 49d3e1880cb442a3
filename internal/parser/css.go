package parser

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/IshaanNene/sheetscrape/internal/config"
	"github.com/IshaanNene/sheetscrape/internal/types"
)

// HTMLNode implements Node over a parsed HTML document.
type HTMLNode struct {
	sel *goquery.Selection
}

// NewHTMLNode wraps a goquery selection.
func NewHTMLNode(sel *goquery.Selection) *HTMLNode {
	return &HTMLNode{sel: sel}
}

// DocumentNode returns the root node of a document.
func DocumentNode(doc *goquery.Document) *HTMLNode {
	return &HTMLNode{sel: doc.Selection}
}

// ResponseNode parses a fetched response and returns its root node.
func ResponseNode(resp *types.Response) (*HTMLNode, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{URL: resp.URL, Err: err}
	}
	return DocumentNode(doc), nil
}

// QueryAll implements Node.
func (n *HTMLNode) QueryAll(sel config.Selector) ([]Node, error) {
	if sel.XPath {
		return n.queryXPath(sel.Expr)
	}

	m, err := cascadia.Compile(sel.Expr)
	if err != nil {
		return nil, err
	}

	var nodes []Node
	n.sel.FindMatcher(m).Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, &HTMLNode{sel: s})
	})
	return nodes, nil
}

// Text implements Node.
func (n *HTMLNode) Text() (string, error) {
	return n.sel.Text(), nil
}

// Attr implements Node.
func (n *HTMLNode) Attr(name string) (string, bool, error) {
	v, ok := n.sel.Attr(name)
	return v, ok, nil
}

// Selection exposes the underlying goquery selection.
func (n *HTMLNode) Selection() *goquery.Selection {
	return n.sel
}
