package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/AlfredBerg/accom-crawler/internal/config"
	"github.com/AlfredBerg/accom-crawler/internal/query"
	"github.com/AlfredBerg/accom-crawler/internal/session"
	"go.uber.org/zap"
)

// Paginator walks the result pages of a site and collects the links that
// match its extraction patterns.
type Paginator struct {
	Session session.Session
	Timing  config.Timing
	Logger  *zap.Logger
}

// Collect returns the sorted set of candidate links of site. Each
// pagination step runs once, starting from the page the session is on when
// Collect is called, and every extraction pattern is applied to each page
// it visits. Only an invalid page bound or a cancelled ctx is returned as
// an error, other failures are logged and the remaining work continues.
func (p *Paginator) Collect(ctx context.Context, site *config.Site) ([]string, error) {
	found := make(map[string]struct{})
	add := func(links []string) {
		for _, l := range links {
			found[l] = struct{}{}
		}
	}

	if len(site.Pagination) == 0 {
		links, err := p.Session.Hyperlinks(ctx)
		if err != nil {
			p.Logger.Warn("failed getting links", zap.String("site", site.Label()), zap.Error(err))
		}
		add(matchAll(links, site.Extract))
		return sorted(found), nil
	}

	origin, err := p.Session.URL(ctx)
	if err != nil {
		p.Logger.Warn("failed reading search results url", zap.String("site", site.Label()), zap.Error(err))
	}

	for i, pg := range site.Pagination {
		if i > 0 && origin != "" {
			if err := p.Session.Navigate(ctx, origin); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				p.Logger.Warn("failed returning to search results",
					zap.String("site", site.Label()),
					zap.String("url", origin),
					zap.Error(err))
			} else if err := p.Session.WaitIdle(ctx, p.Timing.WaitTimeout); err != nil {
				p.Logger.Debug("wait idle errored out", zap.String("url", origin), zap.Error(err))
			}
		}

		var links []string
		switch pg.Kind {
		case config.PaginationPageList:
			links, err = p.pageList(ctx, site, pg)
		case config.PaginationSelect:
			links, err = p.scroll(ctx, site, pg)
		default:
			err = fmt.Errorf("%w: %s", ErrUnknownAction, pg.Kind)
		}
		add(links)

		switch {
		case err == nil:
		case errors.Is(err, ErrInvalidPageBound), ctx.Err() != nil:
			return nil, err
		default:
			p.Logger.Warn("pagination step failed",
				zap.String("site", site.Label()),
				zap.String("target", pg.Target),
				zap.Stringer("action", pg.Kind),
				zap.Error(err))
		}
	}
	return sorted(found), nil
}

// matchAll applies every extraction pattern to links.
func matchAll(links []string, extract []config.Extraction) []string {
	var out []string
	for _, ext := range extract {
		out = append(out, query.Match(links, ext.Pattern)...)
	}
	return out
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

// pageList visits every page linked from the container and extracts the
// matching links of each.
func (p *Paginator) pageList(ctx context.Context, site *config.Site, pg config.Pagination) ([]string, error) {
	hrefs, err := p.Session.HyperlinksWithin(ctx, session.Auto(pg.Target))
	if err != nil {
		return nil, fmt.Errorf("discovering pages: %w", err)
	}
	pages := resolvePages(site.Domain, hrefs)

	var links []string
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return links, err
		}
		p.Logger.Info("getting page",
			zap.String("site", site.Label()),
			zap.Int("page", i+1),
			zap.Int("pages", len(pages)),
			zap.String("url", page))

		if err := p.Session.Navigate(ctx, page); err != nil {
			p.Logger.Warn("failed loading page, skipping", zap.String("site", site.Label()), zap.String("url", page), zap.Error(err))
			continue
		}
		if err := p.Session.WaitIdle(ctx, p.Timing.WaitTimeout); err != nil {
			p.Logger.Debug("wait idle errored out", zap.String("url", page), zap.Error(err))
		}
		all, err := p.Session.Hyperlinks(ctx)
		if err != nil {
			p.Logger.Warn("failed getting links, skipping", zap.String("site", site.Label()), zap.String("url", page), zap.Error(err))
			continue
		}
		links = append(links, matchAll(all, site.Extract)...)
	}
	return links, nil
}

// scroll reads the page count, then extracts and clicks "next" exactly that
// many times.
func (p *Paginator) scroll(ctx context.Context, site *config.Site, pg config.Pagination) ([]string, error) {
	bound, err := p.pageBound(ctx, site)
	if err != nil {
		return nil, err
	}

	next := session.Auto(pg.Target)
	var links []string
	for i := 1; i <= bound; i++ {
		if err := ctx.Err(); err != nil {
			return links, err
		}
		p.Logger.Info("getting page", zap.String("site", site.Label()), zap.Int("page", i), zap.Int("pages", bound))

		if err := p.Session.PressKey(ctx, session.KeyEnd); err != nil {
			p.Logger.Debug("scroll to end failed", zap.Int("page", i), zap.Error(err))
		}
		all, err := p.Session.Hyperlinks(ctx)
		if err != nil {
			p.Logger.Warn("failed getting links", zap.String("site", site.Label()), zap.Int("page", i), zap.Error(err))
		}
		links = append(links, matchAll(all, site.Extract)...)

		if err := p.Session.Click(ctx, next); err != nil {
			p.Logger.Warn("failed clicking next",
				zap.String("site", site.Label()),
				zap.String("target", pg.Target),
				zap.Int("page", i),
				zap.Error(err))
			continue
		}
		if err := p.Session.WaitIdle(ctx, p.Timing.WaitTimeout); err != nil {
			p.Logger.Debug("wait idle errored out", zap.Int("page", i), zap.Error(err))
		}
	}
	return links, nil
}

func (p *Paginator) pageBound(ctx context.Context, site *config.Site) (int, error) {
	if site.MaxPage == "" {
		return 0, fmt.Errorf("%w: no max_page locator", ErrInvalidPageBound)
	}
	text, err := p.Session.Text(ctx, session.Auto(site.MaxPage))
	if err != nil {
		return 0, fmt.Errorf("%w: reading %s: %w", ErrInvalidPageBound, site.MaxPage, err)
	}
	bound, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidPageBound, strings.TrimSpace(text))
	}
	if bound < 1 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPageBound, bound)
	}

	if limit := p.Timing.MaxPageBound; limit > 0 && bound > limit {
		p.Logger.Warn("page bound above limit, clamping",
			zap.String("site", site.Label()),
			zap.Int("bound", bound),
			zap.Int("limit", limit))
		bound = limit
	}
	return bound, nil
}

// resolvePages makes hrefs absolute against domain and returns them
// deduplicated and sorted. Fragment-only and non-http targets are dropped.
func resolvePages(domain string, hrefs []string) []string {
	base, err := url.Parse(domain)
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{})
	var pages []string
	for _, href := range hrefs {
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			continue
		}
		abs.Fragment = ""
		u := abs.String()
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		pages = append(pages, u)
	}
	slices.Sort(pages)
	return pages
}
