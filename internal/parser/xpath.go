package parser

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// queryXPath evaluates an XPath expression against every node of the
// selection and wraps the results.
func (n *HTMLNode) queryXPath(expr string) ([]Node, error) {
	var nodes []Node
	seen := make(map[*html.Node]bool)

	for _, root := range n.sel.Nodes {
		found, err := htmlquery.QueryAll(root, expr)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			if seen[f] {
				continue
			}
			seen[f] = true
			nodes = append(nodes, &HTMLNode{sel: goquery.NewDocumentFromNode(f).Selection})
		}
	}

	return nodes, nil
}
