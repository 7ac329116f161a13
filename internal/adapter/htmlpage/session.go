// Package htmlpage serves static HTML documents through the browser session
// interface. It backs extractor tests and offline replay of saved pages.
package htmlpage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/soldprice-service/internal/repository"
)

var (
	ErrPageNotFound  = errors.New("htmlpage: no document for url")
	ErrSessionClosed = errors.New("htmlpage: session closed")
	ErrNotNavigable  = errors.New("htmlpage: element has no link target")
	errNoScreenshots = errors.New("htmlpage: screenshots are not supported")
)

// Site is a set of documents keyed by absolute URL.
type Site struct {
	pages map[string]string
}

// NewSite indexes pages by their normalised URL.
func NewSite(pages map[string]string) (*Site, error) {
	s := &Site{pages: make(map[string]string, len(pages))}
	for raw, body := range pages {
		key, err := normalise(raw)
		if err != nil {
			return nil, err
		}
		s.pages[key] = body
	}
	return s, nil
}

// LoadDir reads every *.html file in dir. File names are the page URL,
// query-escaped, followed by ".html".
func LoadDir(dir string) (*Site, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read replay dir: %w", err)
	}
	pages := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".html") {
			continue
		}
		raw, err := url.QueryUnescape(strings.TrimSuffix(e.Name(), ".html"))
		if err != nil {
			return nil, fmt.Errorf("replay file %s: %w", e.Name(), err)
		}
		body, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read replay file: %w", err)
		}
		pages[raw] = string(body)
	}
	return NewSite(pages)
}

// Open starts a session on the site.
func (s *Site) Open(context.Context) (repository.Session, error) {
	return &Session{site: s}, nil
}

func normalise(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", raw, err)
	}
	u.Fragment = ""
	u.RawQuery = u.Query().Encode()
	return u.String(), nil
}

// Session holds the document most recently navigated to.
type Session struct {
	site *Site

	mu      sync.Mutex
	current *url.URL
	doc     *goquery.Document
	history []string
	closed  bool
}

// Navigate loads the document for rawURL, resolved against the current page.
func (s *Session) Navigate(_ context.Context, rawURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	target, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if s.current != nil {
		target = s.current.ResolveReference(target)
	}
	key, err := normalise(target.String())
	if err != nil {
		return err
	}
	body, ok := s.site.pages[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPageNotFound, key)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse document %s: %w", key, err)
	}
	s.current = target
	s.doc = doc
	s.history = append(s.history, key)
	return nil
}

// History lists every URL navigated to, in order.
func (s *Session) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history...)
}

func (s *Session) selection() (*goquery.Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.doc == nil {
		return nil, fmt.Errorf("%w: nothing loaded", ErrPageNotFound)
	}
	return s.doc.Selection, nil
}

func (s *Session) FindOne(ctx context.Context, loc repository.Locator) (repository.Element, error) {
	root, err := s.selection()
	if err != nil {
		return nil, err
	}
	return findOne(s, root, loc)
}

func (s *Session) FindAll(ctx context.Context, loc repository.Locator) ([]repository.Element, error) {
	root, err := s.selection()
	if err != nil {
		return nil, err
	}
	return findAll(s, root, loc), nil
}

func (s *Session) Screenshot(context.Context) ([]byte, error) {
	return nil, errNoScreenshots
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func findOne(s *Session, root *goquery.Selection, loc repository.Locator) (repository.Element, error) {
	sel := root.Find(string(loc)).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", repository.ErrElementNotFound, loc)
	}
	return &Element{session: s, sel: sel}, nil
}

func findAll(s *Session, root *goquery.Selection, loc repository.Locator) []repository.Element {
	var out []repository.Element
	root.Find(string(loc)).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, &Element{session: s, sel: sel})
	})
	return out
}

// Element is one node of the current document.
type Element struct {
	session *Session
	sel     *goquery.Selection
}

// Text returns the node text with whitespace collapsed, as a browser renders it.
func (e *Element) Text(context.Context) (string, error) {
	return strings.Join(strings.Fields(e.sel.Text()), " "), nil
}

func (e *Element) Attribute(_ context.Context, name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e *Element) FindOne(_ context.Context, loc repository.Locator) (repository.Element, error) {
	return findOne(e.session, e.sel, loc)
}

func (e *Element) FindAll(_ context.Context, loc repository.Locator) ([]repository.Element, error) {
	return findAll(e.session, e.sel, loc), nil
}

// Click follows the element's link: its own href or data-href, the nearest
// enclosing anchor, or the submission of its enclosing form.
func (e *Element) Click(ctx context.Context) error {
	if href, ok := e.sel.Attr("href"); ok {
		return e.session.Navigate(ctx, href)
	}
	if href, ok := e.sel.Attr("data-href"); ok {
		return e.session.Navigate(ctx, href)
	}
	if a := e.sel.Closest("a[href]"); a.Length() > 0 {
		href, _ := a.Attr("href")
		return e.session.Navigate(ctx, href)
	}
	if form := e.sel.Closest("form"); form.Length() > 0 {
		return e.session.Navigate(ctx, formTarget(form))
	}
	return ErrNotNavigable
}

// SendKeys appends text to the value of an input.
func (e *Element) SendKeys(_ context.Context, text string) error {
	v, _ := e.sel.Attr("value")
	e.sel.SetAttr("value", v+text)
	return nil
}

func formTarget(form *goquery.Selection) string {
	action, _ := form.Attr("action")
	q := url.Values{}
	form.Find("input[name]").Each(func(_ int, in *goquery.Selection) {
		name, _ := in.Attr("name")
		v, _ := in.Attr("value")
		q.Add(name, v)
	})
	if len(q) == 0 {
		return action
	}
	return action + "?" + q.Encode()
}
