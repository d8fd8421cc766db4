package crawl

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/AlfredBerg/accom-crawler/internal/config"
	"github.com/AlfredBerg/accom-crawler/internal/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OutputHandler receives the aggregate of a finished run.
type OutputHandler interface {
	Handle(ctx context.Context, res *Result) error
}

// Result is the aggregate of one run.
type Result struct {
	RunID        uuid.UUID
	Started      time.Time
	Finished     time.Time
	Requirements config.Requirements
	Sites        []SiteResult
	// Links is the sorted, deduplicated union of every site's links.
	Links []string
}

// Runner crawls the configured sites one after another on a single
// session.
type Runner struct {
	Config   *config.Config
	Session  session.Session
	Verifier *Verifier
	Handlers []OutputHandler
	Logger   *zap.Logger
}

// Run crawls every active site in declaration order and hands the
// aggregate to the output handlers. A site failing never fails the run;
// only a ctx done before all sites were visited is returned as an error.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	res := &Result{
		RunID:        uuid.New(),
		Started:      time.Now(),
		Requirements: r.Config.Requirements,
	}
	logger = logger.With(zap.Stringer("run", res.RunID))

	var all []string
	crawled := 0
	for i := range r.Config.Websites {
		site := &r.Config.Websites[i]
		if !site.Active {
			logger.Info("skipping inactive website", zap.String("site", site.Label()))
			continue
		}
		if crawled > 0 {
			if err := sleep(ctx, r.Config.Crawl.SiteCooldown); err != nil {
				return res, fmt.Errorf("run interrupted: %w", err)
			}
		}
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("run interrupted: %w", err)
		}

		job := &Job{
			Session:      r.Session,
			Site:         site,
			Requirements: r.Config.Requirements,
			Timing:       r.Config.Crawl,
			Verifier:     r.Verifier,
			Logger:       logger,
		}
		sr := job.Crawl(ctx)
		res.Sites = append(res.Sites, sr)
		all = append(all, sr.Links...)
		crawled++
	}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("run interrupted: %w", err)
	}

	slices.Sort(all)
	res.Links = slices.Compact(all)
	res.Finished = time.Now()
	logger.Info("all places", zap.Int("count", len(res.Links)), zap.Strings("places", res.Links))

	for _, h := range r.Handlers {
		if err := h.Handle(ctx, res); err != nil {
			logger.Error("output handler failed", zap.String("handler", fmt.Sprintf("%T", h)), zap.Error(err))
		}
	}
	return res, nil
}
