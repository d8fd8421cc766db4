package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AlfredBerg/accom-crawler/internal/js"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
)

// Chromedp drives a Chromium instance through chromedp.
type Chromedp struct {
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	timeout     time.Duration
	navTime     time.Duration
	requests    *inflight
	logger      *zap.Logger
}

func NewChromedp(opts Options) (*Chromedp, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.Bin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.Bin))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	sugar := logger.Named("cdp").Sugar()
	ctxOpts := []chromedp.ContextOption{
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Warnf),
	}
	if opts.Trace {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(sugar.Debugf))
	}
	tab, cancelTab := chromedp.NewContext(allocCtx, ctxOpts...)
	requests := newInflight()
	chromedp.ListenTarget(tab, requests.observe)

	// The first Run starts the browser.
	if err := chromedp.Run(tab); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	return &Chromedp{
		tab:         tab,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		timeout:     opts.actionTimeout(),
		navTime:     opts.navigationTimeout(),
		requests:    requests,
		logger:      logger,
	}, nil
}

// run executes actions on the tab, bounded by timeout and cancelled with ctx.
func (c *Chromedp) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(c.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func query(loc Locator) (string, chromedp.QueryOption, error) {
	switch loc.Kind {
	case KindXPath:
		return loc.Value, chromedp.BySearch, nil
	case KindCSS:
		return loc.Value, chromedp.ByQuery, nil
	case KindID:
		return loc.Value, chromedp.ByID, nil
	case KindLinkText:
		xp, err := linkTextXPath(loc.Value)
		return xp, chromedp.BySearch, err
	}
	return "", nil, fmt.Errorf("%w: locator kind %s", ErrUnsupported, loc.Kind)
}

func linkTextXPath(text string) (string, error) {
	switch {
	case !strings.Contains(text, `"`):
		return fmt.Sprintf(`//a[normalize-space(.)="%s"]`, strings.TrimSpace(text)), nil
	case !strings.Contains(text, `'`):
		return fmt.Sprintf(`//a[normalize-space(.)='%s']`, strings.TrimSpace(text)), nil
	}
	return "", fmt.Errorf("%w: link text with both quote kinds", ErrUnsupported)
}

// scriptArgs turns loc into the (kind, value) pair taken by the locating
// scripts.
func scriptArgs(loc Locator) (string, string, error) {
	switch loc.Kind {
	case KindXPath:
		return "xpath", loc.Value, nil
	case KindCSS:
		return "css", loc.Value, nil
	case KindID:
		return "css", fmt.Sprintf("[id=%q]", loc.Value), nil
	}
	return "", "", fmt.Errorf("%w: locator kind %s", ErrUnsupported, loc.Kind)
}

// call renders a function expression applied to JSON encoded args.
func call(script string, args ...any) (string, error) {
	encoded := make([]string, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", err
		}
		encoded = append(encoded, string(b))
	}
	return "(" + strings.TrimSpace(script) + ")(" + strings.Join(encoded, ",") + ")", nil
}

func (c *Chromedp) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, c.navTime, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

func (c *Chromedp) URL(ctx context.Context) (string, error) {
	var u string
	if err := c.run(ctx, c.timeout, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

func (c *Chromedp) Click(ctx context.Context, loc Locator) error {
	sel, by, err := query(loc)
	if err != nil {
		return err
	}
	if err := c.run(ctx, c.timeout, chromedp.Click(sel, by, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNotFound, loc, err)
	}
	return nil
}

func (c *Chromedp) TypeText(ctx context.Context, loc Locator, text string) error {
	sel, by, err := query(loc)
	if err != nil {
		return err
	}
	if err := c.run(ctx, c.timeout, chromedp.SendKeys(sel, text, by, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNotFound, loc, err)
	}
	return nil
}

func (c *Chromedp) PressKey(ctx context.Context, key Key) error {
	var k string
	switch key {
	case KeyTab:
		k = kb.Tab
	case KeyEnd:
		k = kb.End
	default:
		return fmt.Errorf("%w: key %s", ErrUnsupported, key)
	}
	return c.run(ctx, c.timeout, chromedp.KeyEvent(k))
}

func (c *Chromedp) SelectValue(ctx context.Context, loc Locator, value string) error {
	kind, sel, err := scriptArgs(loc)
	if err != nil {
		return err
	}
	if err := c.Evaluate(ctx, js.SELECT_VALUE, kind, sel, value); err != nil {
		return fmt.Errorf("selecting %q in %s: %w", value, loc, err)
	}
	return nil
}

func (c *Chromedp) Evaluate(ctx context.Context, script string, args ...any) error {
	expr, err := call(script, args...)
	if err != nil {
		return err
	}
	var res any
	if err := c.run(ctx, c.timeout, chromedp.Evaluate(expr, &res)); err != nil {
		return err
	}
	if res == nil || res == false {
		return ErrNotFound
	}
	return nil
}

// WaitIdle waits for a body element and then for the network to stay
// quiet, all within timeout.
func (c *Chromedp) WaitIdle(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.run(ctx, timeout, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return err
	}
	return c.requests.wait(ctx, idleWindow)
}

func (c *Chromedp) Hyperlinks(ctx context.Context) ([]string, error) {
	expr, err := call(js.HREFS)
	if err != nil {
		return nil, err
	}
	var hrefs []string
	if err := c.run(ctx, c.timeout, chromedp.Evaluate(expr, &hrefs)); err != nil {
		return nil, err
	}
	return hrefs, nil
}

func (c *Chromedp) HyperlinksWithin(ctx context.Context, container Locator) ([]string, error) {
	kind, sel, err := scriptArgs(container)
	if err != nil {
		return nil, err
	}
	expr, err := call(js.HREFS_WITHIN, kind, sel)
	if err != nil {
		return nil, err
	}
	var hrefs []string
	if err := c.run(ctx, c.timeout, chromedp.Evaluate(expr, &hrefs)); err != nil {
		return nil, err
	}
	if hrefs == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, container)
	}
	return hrefs, nil
}

func (c *Chromedp) Text(ctx context.Context, loc Locator) (string, error) {
	sel, by, err := query(loc)
	if err != nil {
		return "", err
	}
	var text string
	if err := c.run(ctx, c.timeout, chromedp.Text(sel, &text, by)); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrNotFound, loc, err)
	}
	return text, nil
}

func (c *Chromedp) Close() error {
	err := chromedp.Cancel(c.tab)
	c.cancelTab()
	c.cancelAlloc()
	return err
}

// inflight tracks the network requests of a tab from its protocol events.
type inflight struct {
	mu      sync.Mutex
	pending map[network.RequestID]struct{}
	last    time.Time
	now     func() time.Time
}

func newInflight() *inflight {
	return &inflight{pending: make(map[network.RequestID]struct{}), now: time.Now}
}

func (f *inflight) observe(ev interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		f.pending[e.RequestID] = struct{}{}
	case *network.EventLoadingFinished:
		delete(f.pending, e.RequestID)
	case *network.EventLoadingFailed:
		delete(f.pending, e.RequestID)
	default:
		return
	}
	f.last = f.now()
}

// idleSince reports whether no request has been pending for quiet, counting
// from whichever is later of since and the last network event.
func (f *inflight) idleSince(since time.Time, quiet time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) > 0 {
		return false
	}
	from := since
	if f.last.After(from) {
		from = f.last
	}
	return f.now().Sub(from) >= quiet
}

// wait blocks until the network has been quiet for quiet. Requests started
// shortly after the call, e.g. by a click, are waited for too.
func (f *inflight) wait(ctx context.Context, quiet time.Duration) error {
	start := f.now()
	interval := quiet / 10
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for !f.idleSince(start, quiet) {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for network idle: %w", ctx.Err())
		case <-tick.C:
		}
	}
	return nil
}
