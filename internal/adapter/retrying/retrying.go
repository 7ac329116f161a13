// Package retrying decorates a browser session so that element lookups are
// retried with a fixed delay. Pages render asynchronously, so a lookup that
// fails once often succeeds a moment later.
package retrying

import (
	"context"
	"errors"
	"time"

	"github.com/user/soldprice-service/internal/repository"
)

// Policy controls how lookups are retried.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultPolicy matches the marketplace's typical render latency.
var DefaultPolicy = Policy{Attempts: 5, Delay: 3 * time.Second}

// Wrap returns a session whose FindOne and FindAll calls, and those of every
// element it hands out, are retried according to p. Other calls pass through.
func Wrap(s repository.Session, p Policy) repository.Session {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	return &session{inner: s, policy: p}
}

// do runs fn until it succeeds, attempts run out or ctx is done. The last
// error is returned.
func do[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	for attempt := 1; ; attempt++ {
		v, err = fn()
		if err == nil || attempt >= p.Attempts {
			return v, err
		}
		t := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return v, ctx.Err()
		case <-t.C:
		}
	}
}

// findAll treats an empty result as a failed attempt so that a list still
// rendering is waited for. After the last attempt the empty slice is
// returned without error.
func findAll(ctx context.Context, p Policy, fn func() ([]repository.Element, error)) ([]repository.Element, error) {
	var last []repository.Element
	_, err := do(ctx, p, func() (struct{}, error) {
		els, err := fn()
		if err != nil {
			return struct{}{}, err
		}
		last = els
		if len(els) == 0 {
			return struct{}{}, repository.ErrElementNotFound
		}
		return struct{}{}, nil
	})
	if errors.Is(err, repository.ErrElementNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return wrapAll(last, p), nil
}

// WrapElement applies p to lookups scoped to el.
func WrapElement(el repository.Element, p Policy) repository.Element {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	return &element{inner: el, policy: p}
}

// Unwrap returns the element underneath a retrying wrapper, or el unchanged.
func Unwrap(el repository.Element) repository.Element {
	if w, ok := el.(*element); ok {
		return w.inner
	}
	return el
}

func wrapAll(els []repository.Element, p Policy) []repository.Element {
	out := make([]repository.Element, len(els))
	for i, e := range els {
		out[i] = &element{inner: e, policy: p}
	}
	return out
}

type session struct {
	inner  repository.Session
	policy Policy
}

func (s *session) Navigate(ctx context.Context, url string) error {
	return s.inner.Navigate(ctx, url)
}

func (s *session) FindOne(ctx context.Context, loc repository.Locator) (repository.Element, error) {
	el, err := do(ctx, s.policy, func() (repository.Element, error) {
		return s.inner.FindOne(ctx, loc)
	})
	if err != nil {
		return nil, err
	}
	return &element{inner: el, policy: s.policy}, nil
}

func (s *session) FindAll(ctx context.Context, loc repository.Locator) ([]repository.Element, error) {
	return findAll(ctx, s.policy, func() ([]repository.Element, error) {
		return s.inner.FindAll(ctx, loc)
	})
}

func (s *session) Screenshot(ctx context.Context) ([]byte, error) {
	return s.inner.Screenshot(ctx)
}

func (s *session) Close() error {
	return s.inner.Close()
}

type element struct {
	inner  repository.Element
	policy Policy
}

func (e *element) Text(ctx context.Context) (string, error) {
	return e.inner.Text(ctx)
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	return e.inner.Attribute(ctx, name)
}

func (e *element) FindOne(ctx context.Context, loc repository.Locator) (repository.Element, error) {
	el, err := do(ctx, e.policy, func() (repository.Element, error) {
		return e.inner.FindOne(ctx, loc)
	})
	if err != nil {
		return nil, err
	}
	return &element{inner: el, policy: e.policy}, nil
}

func (e *element) FindAll(ctx context.Context, loc repository.Locator) ([]repository.Element, error) {
	return findAll(ctx, e.policy, func() ([]repository.Element, error) {
		return e.inner.FindAll(ctx, loc)
	})
}

func (e *element) Click(ctx context.Context) error {
	return e.inner.Click(ctx)
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	return e.inner.SendKeys(ctx, text)
}
