package session

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Session is a single browsing context. It is not safe for concurrent use;
// the crawl drives it from one goroutine.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// URL reports the address of the current page.
	URL(ctx context.Context) (string, error)
	Click(ctx context.Context, loc Locator) error
	// TypeText types text into the located element.
	TypeText(ctx context.Context, loc Locator, text string) error
	PressKey(ctx context.Context, key Key) error
	// SelectValue selects the option whose value attribute equals value.
	SelectValue(ctx context.Context, loc Locator, value string) error
	// Evaluate runs a function expression in the page with args.
	Evaluate(ctx context.Context, script string, args ...any) error
	// WaitIdle blocks until the page has no network activity or timeout
	// passes.
	WaitIdle(ctx context.Context, timeout time.Duration) error
	// Hyperlinks returns the absolute targets of every anchor on the page.
	Hyperlinks(ctx context.Context) ([]string, error)
	// HyperlinksWithin returns the raw href attributes of the anchors below
	// container, unresolved.
	HyperlinksWithin(ctx context.Context, container Locator) ([]string, error)
	Text(ctx context.Context, loc Locator) (string, error)
	Close() error
}

// idleWindow is how long the network must stay quiet for a page to count
// as idle.
const idleWindow = 500 * time.Millisecond

type LocatorKind int

const (
	KindXPath LocatorKind = iota
	KindCSS
	KindID
	KindLinkText
)

func (k LocatorKind) String() string {
	switch k {
	case KindXPath:
		return "xpath"
	case KindCSS:
		return "css"
	case KindID:
		return "id"
	case KindLinkText:
		return "link_text"
	}
	return fmt.Sprintf("LocatorKind(%d)", int(k))
}

// Locator identifies an element on the current page.
type Locator struct {
	Kind  LocatorKind
	Value string
}

func (l Locator) String() string {
	return l.Kind.String() + "=" + l.Value
}

func XPath(v string) Locator    { return Locator{Kind: KindXPath, Value: v} }
func CSS(v string) Locator      { return Locator{Kind: KindCSS, Value: v} }
func ID(v string) Locator       { return Locator{Kind: KindID, Value: v} }
func LinkText(v string) Locator { return Locator{Kind: KindLinkText, Value: v} }

// Auto treats expressions starting like a path as XPath and anything else
// as a CSS selector.
func Auto(v string) Locator {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "/") || strings.HasPrefix(v, "(") || strings.HasPrefix(v, "./") {
		return XPath(v)
	}
	return CSS(v)
}

// IDOrAuto returns an ID locator for bare identifiers and falls back to Auto
// for anything carrying selector syntax.
func IDOrAuto(v string) Locator {
	v = strings.TrimSpace(v)
	if v != "" && !strings.ContainsAny(v, "/#.[]():>~+* '\"=") {
		return ID(v)
	}
	return Auto(v)
}

type Key int

const (
	KeyTab Key = iota + 1
	KeyEnd
)

func (k Key) String() string {
	switch k {
	case KeyTab:
		return "Tab"
	case KeyEnd:
		return "End"
	}
	return fmt.Sprintf("Key(%d)", int(k))
}
