package parser

import (
	"github.com/IshaanNene/sheetscrape/internal/config"
)

// Node is an element tree the Extractor can query. Static pages implement
// it over goquery, live browser sessions over their element handles.
type Node interface {
	// QueryAll returns all descendants matching sel, in document order.
	QueryAll(sel config.Selector) ([]Node, error)

	// Text returns the text content of the node.
	Text() (string, error)

	// Attr returns the named attribute and whether it is present.
	Attr(name string) (string, bool, error)
}
