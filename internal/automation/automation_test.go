package automation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/sheetscrape/internal/config"
	"github.com/IshaanNene/sheetscrape/internal/parser"
	"github.com/IshaanNene/sheetscrape/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestWaitAnyFirstToHold(t *testing.T) {
	calls := 0
	never := func() (bool, error) { return false, nil }
	later := func() (bool, error) {
		calls++
		return calls >= 3, nil
	}

	idx, err := WaitAny(context.Background(), time.Second, time.Millisecond, never, later)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, 3, calls)
}

func TestWaitAnyEitherCondition(t *testing.T) {
	// The first condition failing must not hide the second.
	failing := func() (bool, error) { return false, errors.New("no such element") }
	ready := func() (bool, error) { return true, nil }

	idx, err := WaitAny(context.Background(), time.Second, time.Millisecond, failing, ready)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestWaitAnyTimeout(t *testing.T) {
	never := func() (bool, error) { return false, nil }

	start := time.Now()
	idx, err := WaitAny(context.Background(), 20*time.Millisecond, time.Millisecond, never)
	assert.Equal(t, -1, idx)
	assert.ErrorIs(t, err, types.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

// stubSession is a minimal Session over static element lists.
type stubSession struct {
	els map[string][]Element
	url string
}

func (s *stubSession) Navigate(context.Context, string) error { return nil }
func (s *stubSession) FindAll(sel config.Selector) ([]Element, error) {
	return s.els[sel.Expr], nil
}
func (s *stubSession) Document() parser.Node { return DocumentOf(s) }
func (s *stubSession) Trigger(Element) error { return nil }
func (s *stubSession) CurrentURL() (string, error) { return s.url, nil }
func (s *stubSession) Close() error { return nil }

type stubElement struct {
	text  string
	stale bool
}

func (e *stubElement) QueryAll(config.Selector) ([]parser.Node, error) { return nil, nil }
func (e *stubElement) Text() (string, error) { return e.text, nil }
func (e *stubElement) Attr(string) (string, bool, error) { return "", false, nil }
func (e *stubElement) Stale() bool { return e.stale }

func TestConditions(t *testing.T) {
	el := &stubElement{text: "x"}
	s := &stubSession{
		els: map[string][]Element{"#ready": {el}},
		url: "https://a.test/1",
	}

	ok, err := Present(s, config.Selector{Expr: "#ready"})()
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = Present(s, config.Selector{Expr: "#missing"})()
	assert.False(t, ok)

	ok, _ = Detached(el)()
	assert.False(t, ok)
	el.stale = true
	ok, _ = Detached(el)()
	assert.True(t, ok)

	ok, _ = URLChanged(s, "https://a.test/1")()
	assert.False(t, ok)
	s.url = "https://a.test/2"
	ok, _ = URLChanged(s, "https://a.test/1")()
	assert.True(t, ok)
}

func TestDocumentOf(t *testing.T) {
	s := &stubSession{els: map[string][]Element{
		"body": {&stubElement{text: "page text"}},
		"li":   {&stubElement{text: "a"}, &stubElement{text: "b"}},
	}}

	doc := s.Document()
	text, err := doc.Text()
	require.NoError(t, err)
	assert.Equal(t, "page text", text)

	nodes, err := doc.QueryAll(config.Selector{Expr: "li"})
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestLauncherRejectsUnknownBrowsers(t *testing.T) {
	settings := config.DefaultSettings()
	l := NewLauncher(&settings.Browser, nil, testLogger)

	_, err := l.Open(context.Background(), "netscape")
	assert.ErrorIs(t, err, config.ErrUnsupportedBrowser)

	_, err = l.Open(context.Background(), "firefox")
	var se *types.SessionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "firefox", se.Browser)
}
