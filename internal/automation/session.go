// Package automation drives interactive browser sessions for dynamic sites.
package automation

import (
	"context"

	"github.com/IshaanNene/sheetscrape/internal/config"
	"github.com/IshaanNene/sheetscrape/internal/parser"
)

// Element is a live element handle.
type Element interface {
	parser.Node

	// Stale reports whether the element is no longer attached to the
	// current document. Errors while checking count as stale.
	Stale() bool
}

// Session is a navigable browser tab.
type Session interface {
	// Navigate loads rawURL in the tab.
	Navigate(ctx context.Context, rawURL string) error

	// FindAll returns the elements matching sel, in document order. It
	// does not wait.
	FindAll(sel config.Selector) ([]Element, error)

	// Document returns the page as a node for extraction.
	Document() parser.Node

	// Trigger clicks el through the DOM (element.click()), not a synthetic
	// mouse event.
	Trigger(el Element) error

	// CurrentURL returns the tab's location.
	CurrentURL() (string, error)

	// Close releases the tab and, if it owns one, the browser.
	Close() error
}

// Opener creates sessions for a browser kind.
type Opener interface {
	Open(ctx context.Context, browser string) (Session, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, browser string) (Session, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, browser string) (Session, error) {
	return f(ctx, browser)
}

// documentNode adapts a Session to parser.Node.
type documentNode struct {
	s Session
}

// QueryAll implements parser.Node.
func (d documentNode) QueryAll(sel config.Selector) ([]parser.Node, error) {
	els, err := d.s.FindAll(sel)
	if err != nil {
		return nil, err
	}
	return Nodes(els), nil
}

// Text implements parser.Node with the body text.
func (d documentNode) Text() (string, error) {
	body, err := d.s.FindAll(config.Selector{Expr: "body"})
	if err != nil || len(body) == 0 {
		return "", err
	}
	return body[0].Text()
}

// Attr implements parser.Node. A document has no attributes.
func (d documentNode) Attr(string) (string, bool, error) {
	return "", false, nil
}

// DocumentOf returns a parser.Node over the whole page of s.
func DocumentOf(s Session) parser.Node {
	return documentNode{s: s}
}

// Nodes converts elements to parser nodes.
func Nodes(els []Element) []parser.Node {
	nodes := make([]parser.Node, len(els))
	for i, el := range els {
		nodes[i] = el
	}
	return nodes
}
