package crawl

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SiteResult is the outcome of crawling one site.
type SiteResult struct {
	Site       string
	URL        string
	Links      []string
	Candidates int
	Duration   time.Duration
	Err        error
}

// Crawl runs the whole pipeline for the site: navigate, fill the search
// form, paginate, verify. It never fails: errors and panics are logged and
// leave the result without links.
func (j *Job) Crawl(ctx context.Context) (res SiteResult) {
	logger := j.logger().With(zap.String("site", j.Site.Label()))
	start := time.Now()
	res = SiteResult{Site: j.Site.Label(), URL: j.Site.URL}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("site crawl panicked", zap.Any("panic", r), zap.Stack("stack"))
			res.Links = nil
			res.Err = fmt.Errorf("%w: %v", ErrSitePanic, r)
		}
		res.Duration = time.Since(start)
	}()

	links, candidates, err := j.crawl(ctx, logger)
	res.Candidates = candidates
	if err != nil {
		logger.Error("site crawl failed", zap.Error(err), zap.Stack("stack"))
		res.Err = err
		return res
	}
	res.Links = links
	logger.Info("found results", zap.Int("results", len(links)), zap.String("url", j.Site.URL))
	return res
}

func (j *Job) crawl(ctx context.Context, logger *zap.Logger) ([]string, int, error) {
	logger.Info("Current website", zap.String("url", j.Site.URL))
	if err := j.Session.Navigate(ctx, j.Site.URL); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrNavigation, err)
	}
	if err := sleep(ctx, j.Timing.SettleDelay); err != nil {
		return nil, 0, err
	}

	in := &Interpreter{
		Session:      j.Session,
		Requirements: j.Requirements,
		Timing:       j.Timing,
		Logger:       j.logger(),
		Site:         j.Site.Label(),
	}
	in.FillForm(ctx, j.Site.Search)
	if err := sleep(ctx, j.Timing.FormDelay); err != nil {
		return nil, 0, err
	}

	pg := &Paginator{Session: j.Session, Timing: j.Timing, Logger: j.logger()}
	candidates, err := pg.Collect(ctx, j.Site)
	if err != nil {
		return nil, 0, err
	}

	verified := j.Verifier.Filter(ctx, j.Requirements.Bathrooms, j.Site.Verification, candidates)
	return verified, len(candidates), nil
}
