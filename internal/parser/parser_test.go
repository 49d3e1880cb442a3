package parser

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/sheetscrape/internal/config"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const testHTML = `<!DOCTYPE html>
<html>
<head><title>Test Product</title></head>
<body>
    <h1 class="title"> Hello World </h1>
    <p class="price">  </p>
    <ul class="tags">
        <li>alpha</li>
        <li>  </li>
        <li>beta</li>
    </ul>
    <span class="single-color">Red</span>
    <div class="gallery">
        <div class="thumb"><img src="/a.png"></div>
        <img class="thumb" src="/b.png">
        <div class="thumb"><span>no image</span></div>
    </div>
    <a class="next" href="/p2">next</a>
</body>
</html>`

func testRoot(t *testing.T) *HTMLNode {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(testHTML))
	require.NoError(t, err)
	return DocumentNode(doc)
}

func rule(name, sel string, kind config.Kind) config.FieldRule {
	r := config.FieldRule{Name: name, Selector: config.ParseSelector(sel), Kind: kind}
	if kind == config.KindAttrList {
		r.Attribute = "src"
	}
	return r
}

func TestExtractScalarAndList(t *testing.T) {
	e := NewExtractor(testLogger)
	rec := e.Extract(testRoot(t), []config.FieldRule{
		rule("title", "h1.title", config.KindText),
		rule("tags", "ul.tags li", config.KindText),
	}, "https://example.com")

	assert.Equal(t, "Hello World", rec.GetString("title"))

	tags, ok := rec.Get("tags")
	require.True(t, ok)
	assert.Equal(t, []string{"alpha", "beta"}, tags)
}

func TestExtractMissingIsNilNotAbsent(t *testing.T) {
	e := NewExtractor(testLogger)
	rec := e.Extract(testRoot(t), []config.FieldRule{
		rule("title", "h1.title", config.KindText),
		rule("sku", ".sku", config.KindText),
		rule("price", "p.price", config.KindText),
		rule("images", ".nothing", config.KindAttrList),
	}, "https://example.com")

	assert.Equal(t, []string{"title", "sku", "price", "images"}, rec.Keys())
	for _, k := range []string{"sku", "price", "images"} {
		v, ok := rec.Get(k)
		assert.True(t, ok, k)
		assert.Nil(t, v, k)
	}
	assert.True(t, rec.HasData())
}

func TestExtractListKindsStayLists(t *testing.T) {
	e := NewExtractor(testLogger)
	rec := e.Extract(testRoot(t), []config.FieldRule{
		rule("colors", ".single-color", config.KindTextList),
		rule("images", ".gallery .thumb", config.KindAttrList),
	}, "https://example.com")

	colors, _ := rec.Get("colors")
	assert.Equal(t, []string{"Red"}, colors)

	images, _ := rec.Get("images")
	assert.Equal(t, []string{"/a.png", "/b.png"}, images)
}

func TestExtractAttributeOtherThanSrc(t *testing.T) {
	e := NewExtractor(testLogger)
	r := config.FieldRule{Name: "links", Selector: config.ParseSelector("a.next"), Kind: config.KindAttrList, Attribute: "href"}
	rec := e.Extract(testRoot(t), []config.FieldRule{r}, "https://example.com")
	links, _ := rec.Get("links")
	assert.Equal(t, []string{"/p2"}, links)
}

func TestExtractXPath(t *testing.T) {
	e := NewExtractor(testLogger)
	rec := e.Extract(testRoot(t), []config.FieldRule{
		rule("title", "xpath://h1[@class='title']", config.KindText),
		rule("tags", "xpath://ul[@class='tags']/li", config.KindText),
	}, "https://example.com")

	assert.Equal(t, "Hello World", rec.GetString("title"))
	tags, _ := rec.Get("tags")
	assert.Equal(t, []string{"alpha", "beta"}, tags)
}

func TestExtractAllNil(t *testing.T) {
	e := NewExtractor(testLogger)
	rec := e.Extract(testRoot(t), []config.FieldRule{
		rule("a", ".none", config.KindText),
		rule("b", "p.price", config.KindText),
	}, "https://example.com")
	assert.False(t, rec.HasData())
	assert.Equal(t, 2, rec.Len())
}

// failingNode fails queries for one selector and delegates the rest.
type failingNode struct {
	Node
	bad string
}

func (f failingNode) QueryAll(sel config.Selector) ([]Node, error) {
	if sel.Expr == f.bad {
		return nil, errors.New("detached")
	}
	return f.Node.QueryAll(sel)
}

func TestExtractFieldFailureDoesNotAbortRecord(t *testing.T) {
	e := NewExtractor(testLogger)
	root := failingNode{Node: testRoot(t), bad: ".broken"}

	rec := e.Extract(root, []config.FieldRule{
		rule("broken", ".broken", config.KindText),
		rule("title", "h1.title", config.KindText),
	}, "https://example.com")

	v, ok := rec.Get("broken")
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, "Hello World", rec.GetString("title"))
}

func TestExtractInvalidSelectorIsNil(t *testing.T) {
	e := NewExtractor(testLogger)
	rec := e.Extract(testRoot(t), []config.FieldRule{rule("bad", "h1[", config.KindText)}, "https://example.com")
	v, ok := rec.Get("bad")
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestFieldUnknownKind(t *testing.T) {
	e := NewExtractor(testLogger)
	_, err := e.Field(testRoot(t), config.FieldRule{Name: "x", Selector: config.ParseSelector("h1"), Kind: "table"})
	assert.Error(t, err)
}
