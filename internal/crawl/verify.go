package crawl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/AlfredBerg/accom-crawler/internal/config"
	"github.com/AlfredBerg/accom-crawler/internal/query"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Verifier fetches candidate detail pages over plain HTTP, outside the
// browsing session, and keeps those meeting the bathroom minimum.
type Verifier struct {
	client    *http.Client
	workers   int
	timeout   time.Duration
	rate      rate.Limit
	burst     int
	userAgent string
	maxBody   int64
	logger    *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewVerifier builds a Verifier from settings. A nil client uses
// http.DefaultClient.
func NewVerifier(client *http.Client, settings config.Verify, logger *zap.Logger) *Verifier {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if settings.Rate > 0 {
		limit = rate.Limit(settings.Rate)
	}
	return &Verifier{
		client:    client,
		workers:   max(settings.Workers, 1),
		timeout:   settings.Timeout,
		rate:      limit,
		burst:     max(settings.Burst, 1),
		userAgent: settings.UserAgent,
		maxBody:   settings.MaxBody,
		logger:    logger,
		limiters:  make(map[string]*rate.Limiter),
	}
}

type verdict struct {
	url string
	ok  bool
}

// Filter returns the sorted candidates whose detail page yields a number
// at the descriptor's group index that is at least minBathrooms. Any
// failure along the way drops the candidate.
func (v *Verifier) Filter(ctx context.Context, minBathrooms int, desc config.Verification, candidates []string) []string {
	if len(candidates) == 0 {
		return nil
	}
	v.logger.Info("Checking bathroom requirements...", zap.Int("candidates", len(candidates)))

	unique := slices.Clone(candidates)
	slices.Sort(unique)
	unique = slices.Compact(unique)

	p := pool.NewWithResults[verdict]().WithMaxGoroutines(v.workers)
	for _, c := range unique {
		p.Go(func() verdict {
			return verdict{url: c, ok: v.meets(ctx, minBathrooms, desc, c)}
		})
	}

	var kept []string
	for _, res := range p.Wait() {
		if res.ok {
			kept = append(kept, res.url)
		}
	}
	slices.Sort(kept)
	return kept
}

func (v *Verifier) meets(ctx context.Context, minBathrooms int, desc config.Verification, candidate string) bool {
	logger := v.logger.With(zap.String("url", candidate))

	groups, err := v.fetch(ctx, candidate, desc)
	if err != nil {
		logger.Debug("verification fetch failed", zap.Error(err))
		return false
	}
	if len(groups) == 0 {
		logger.Debug("verification pattern did not match")
		return false
	}
	n, ok := query.Number(groups[0], desc.Index)
	if !ok {
		logger.Debug("no number at group index", zap.Int("index", desc.Index), zap.Strings("groups", groups[0]))
		return false
	}
	return n >= float64(minBathrooms)
}

func (v *Verifier) fetch(ctx context.Context, candidate string, desc config.Verification) ([][]string, error) {
	u, err := url.Parse(candidate)
	if err != nil {
		return nil, err
	}
	if err := v.limiter(u.Host).Wait(ctx); err != nil {
		return nil, err
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
	if err != nil {
		return nil, err
	}
	if v.userAgent != "" {
		req.Header.Set("User-Agent", v.userAgent)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if v.maxBody > 0 {
		body = io.LimitReader(resp.Body, v.maxBody)
	}
	return query.Query(body, desc.Selector, desc.Pattern)
}

func (v *Verifier) limiter(host string) *rate.Limiter {
	v.mu.Lock()
	defer v.mu.Unlock()
	l, ok := v.limiters[host]
	if !ok {
		l = rate.NewLimiter(v.rate, v.burst)
		v.limiters[host] = l
	}
	return l
}
