package repository

import (
	"context"
	"errors"
)

// ErrElementNotFound is returned by FindOne when nothing matches the locator.
var ErrElementNotFound = errors.New("element not found")

// Locator is a CSS selector understood by every Session implementation.
type Locator string

// Element is a handle to a node on the current page.
type Element interface {
	Text(ctx context.Context) (string, error)
	// Attribute reports whether the attribute is present alongside its value.
	Attribute(ctx context.Context, name string) (string, bool, error)
	FindOne(ctx context.Context, loc Locator) (Element, error)
	FindAll(ctx context.Context, loc Locator) ([]Element, error)
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
}

// Session is one browsing session against the marketplace.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// FindOne returns ErrElementNotFound when the locator matches nothing.
	FindOne(ctx context.Context, loc Locator) (Element, error)
	// FindAll returns an empty slice when the locator matches nothing.
	FindAll(ctx context.Context, loc Locator) ([]Element, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// SessionFactory opens fresh browsing sessions.
type SessionFactory interface {
	Open(ctx context.Context) (Session, error)
}
