package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

type StaticOptions struct {
	Client    *http.Client
	UserAgent string
	// MaxBody caps the number of bytes read from a response.
	MaxBody int64
	Logger  *zap.Logger
}

// Static fetches pages over plain HTTP and queries them with goquery. It
// has no script engine, so only navigation, link clicks and reads work.
type Static struct {
	client    *http.Client
	userAgent string
	maxBody   int64
	logger    *zap.Logger

	doc *goquery.Document
	url *url.URL
}

func NewStatic(opts StaticOptions) *Static {
	s := &Static{
		client:    opts.Client,
		userAgent: opts.UserAgent,
		maxBody:   opts.MaxBody,
		logger:    opts.Logger,
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: 30 * time.Second}
	}
	if s.maxBody <= 0 {
		s.maxBody = 5 << 20
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

func (s *Static) Navigate(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", rawURL, err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("navigating to %s: %w %d", rawURL, ErrStatus, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, s.maxBody))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", rawURL, err)
	}
	s.doc = doc
	s.url = resp.Request.URL
	return nil
}

func (s *Static) find(loc Locator) (*goquery.Selection, error) {
	if s.doc == nil {
		return nil, ErrNoPage
	}

	var sel *goquery.Selection
	switch loc.Kind {
	case KindCSS:
		sel = s.doc.Find(loc.Value)
	case KindID:
		sel = s.doc.Find(fmt.Sprintf("[id=%q]", loc.Value))
	case KindLinkText:
		want := strings.TrimSpace(loc.Value)
		sel = s.doc.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
			return strings.TrimSpace(a.Text()) == want
		})
	default:
		return nil, fmt.Errorf("%w: locator kind %s", ErrUnsupported, loc.Kind)
	}

	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	return sel.First(), nil
}

func (s *Static) URL(context.Context) (string, error) {
	if s.url == nil {
		return "", ErrNoPage
	}
	return s.url.String(), nil
}

// Click follows the href of the located anchor.
func (s *Static) Click(ctx context.Context, loc Locator) error {
	sel, err := s.find(loc)
	if err != nil {
		return err
	}
	href, ok := sel.Attr("href")
	if goquery.NodeName(sel) != "a" || !ok {
		return fmt.Errorf("%w: click on %s", ErrUnsupported, loc)
	}
	target, err := s.url.Parse(strings.TrimSpace(href))
	if err != nil {
		return fmt.Errorf("resolving %q: %w", href, err)
	}
	return s.Navigate(ctx, target.String())
}

func (s *Static) TypeText(context.Context, Locator, string) error {
	return fmt.Errorf("%w: typing", ErrUnsupported)
}

// PressKey is a no-op; there is no viewport to scroll or focus to move.
func (s *Static) PressKey(context.Context, Key) error {
	return nil
}

func (s *Static) SelectValue(context.Context, Locator, string) error {
	return fmt.Errorf("%w: selecting", ErrUnsupported)
}

func (s *Static) Evaluate(context.Context, string, ...any) error {
	return fmt.Errorf("%w: script evaluation", ErrUnsupported)
}

func (s *Static) WaitIdle(context.Context, time.Duration) error {
	return nil
}

func (s *Static) Hyperlinks(context.Context) ([]string, error) {
	if s.doc == nil {
		return nil, ErrNoPage
	}
	var links []string
	s.doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		u, err := s.url.Parse(strings.TrimSpace(href))
		if err != nil {
			s.logger.Debug("skipping unparsable href", zap.String("href", href), zap.Error(err))
			return
		}
		links = append(links, u.String())
	})
	return links, nil
}

func (s *Static) HyperlinksWithin(_ context.Context, container Locator) ([]string, error) {
	sel, err := s.find(container)
	if err != nil {
		return nil, err
	}
	var hrefs []string
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if href, _ := a.Attr("href"); href != "" {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs, nil
}

func (s *Static) Text(_ context.Context, loc Locator) (string, error) {
	sel, err := s.find(loc)
	if err != nil {
		return "", err
	}
	return sel.Text(), nil
}

func (s *Static) Close() error {
	s.doc = nil
	s.url = nil
	return nil
}
