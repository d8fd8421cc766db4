package session

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/AlfredBerg/accom-crawler/internal/js"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Options configure the browser backed sessions.
type Options struct {
	Headless bool
	Bin      string
	Width    int
	Height   int
	// Trace logs every protocol call made by the driver.
	Trace bool
	// ActionTimeout bounds a single locate-and-act operation.
	ActionTimeout time.Duration
	// NavigationTimeout bounds loading a page.
	NavigationTimeout time.Duration
	Logger            *zap.Logger
}

func (o Options) actionTimeout() time.Duration {
	if o.ActionTimeout <= 0 {
		return 5 * time.Second
	}
	return o.ActionTimeout
}

func (o Options) navigationTimeout() time.Duration {
	if o.NavigationTimeout <= 0 {
		return 30 * time.Second
	}
	return o.NavigationTimeout
}

// Rod drives a Chromium instance through go-rod.
type Rod struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	timeout  time.Duration
	navTime  time.Duration
	logger   *zap.Logger
}

func NewRod(opts Options) (*Rod, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	l := launcher.New().
		Headless(opts.Headless).
		Set("window-size", fmt.Sprintf("%d,%d", opts.Width, opts.Height))
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().
		ControlURL(u).
		Trace(opts.Trace).
		Logger(zap.NewStdLog(logger.Named("cdp")))
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	//Don't download files in the browser, e.g. pdf files
	_ = proto.BrowserSetDownloadBehavior{
		Behavior:         proto.BrowserSetDownloadBehaviorBehaviorDeny,
		BrowserContextID: browser.BrowserContextID,
	}.Call(browser)

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("opening page: %w", err)
	}
	if opts.Width > 0 && opts.Height > 0 {
		err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             opts.Width,
			Height:            opts.Height,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			logger.Warn("failed setting viewport", zap.Error(err))
		}
	}

	return &Rod{
		launcher: l,
		browser:  browser,
		page:     page,
		timeout:  opts.actionTimeout(),
		navTime:  opts.navigationTimeout(),
		logger:   logger,
	}, nil
}

func (r *Rod) Navigate(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, r.navTime)
	defer cancel()

	if err := r.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	if err := r.page.Context(ctx).WaitLoad(); err != nil {
		r.logger.Debug("wait load errored out", zap.String("url", url), zap.Error(err))
	}
	return nil
}

func (r *Rod) URL(ctx context.Context) (string, error) {
	info, err := r.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (r *Rod) element(page *rod.Page, loc Locator) (*rod.Element, error) {
	var (
		el  *rod.Element
		err error
	)
	switch loc.Kind {
	case KindXPath:
		el, err = page.ElementX(loc.Value)
	case KindCSS:
		el, err = page.Element(loc.Value)
	case KindID:
		el, err = page.Element(fmt.Sprintf("[id=%q]", loc.Value))
	case KindLinkText:
		el, err = page.ElementR("a", "/^\\s*"+regexp.QuoteMeta(loc.Value)+"\\s*$/")
	default:
		return nil, fmt.Errorf("%w: locator kind %s", ErrUnsupported, loc.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, loc, err)
	}
	return el, nil
}

// act locates loc on a page bound to a fresh action timeout and runs fn on it.
func (r *Rod) act(ctx context.Context, loc Locator, fn func(*rod.Element) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	el, err := r.element(r.page.Context(ctx), loc)
	if err != nil {
		return err
	}
	return fn(el)
}

func (r *Rod) Click(ctx context.Context, loc Locator) error {
	return r.act(ctx, loc, func(el *rod.Element) error {
		if err := el.ScrollIntoView(); err != nil {
			r.logger.Debug("scroll error", zap.Stringer("target", loc), zap.Error(err))
		}
		return el.Click(proto.InputMouseButtonLeft, 1)
	})
}

func (r *Rod) TypeText(ctx context.Context, loc Locator, text string) error {
	return r.act(ctx, loc, func(el *rod.Element) error {
		return el.Input(text)
	})
}

func (r *Rod) PressKey(ctx context.Context, key Key) error {
	var k input.Key
	switch key {
	case KeyTab:
		k = input.Tab
	case KeyEnd:
		k = input.End
	default:
		return fmt.Errorf("%w: key %s", ErrUnsupported, key)
	}
	return r.page.Context(ctx).Keyboard.Type(k)
}

func (r *Rod) SelectValue(ctx context.Context, loc Locator, value string) error {
	return r.act(ctx, loc, func(el *rod.Element) error {
		return el.Select([]string{fmt.Sprintf("[value=%q]", value)}, true, rod.SelectorTypeCSSSector)
	})
}

func (r *Rod) Evaluate(ctx context.Context, script string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.page.Context(ctx).Eval(script, args...)
	if err != nil {
		return err
	}
	if res.Value.Nil() || res.Value.String() == "false" {
		return ErrNotFound
	}
	return nil
}

// WaitIdle waits for the load event, no requests in flight and a settled
// DOM, all within timeout.
func (r *Rod) WaitIdle(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.page.Context(ctx).WaitStable(idleWindow)
}

func (r *Rod) Hyperlinks(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.page.Context(ctx).Eval(js.HREFS)
	if err != nil {
		return nil, err
	}
	return stringList(res), nil
}

func (r *Rod) HyperlinksWithin(ctx context.Context, container Locator) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	kind := "css"
	switch container.Kind {
	case KindXPath:
		kind = "xpath"
	case KindID:
		container = CSS(fmt.Sprintf("[id=%q]", container.Value))
	case KindLinkText:
		return nil, fmt.Errorf("%w: container locator %s", ErrUnsupported, container.Kind)
	}

	res, err := r.page.Context(ctx).Eval(js.HREFS_WITHIN, kind, container.Value)
	if err != nil {
		return nil, err
	}
	if res.Value.Nil() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, container)
	}
	return stringList(res), nil
}

func (r *Rod) Text(ctx context.Context, loc Locator) (string, error) {
	var text string
	err := r.act(ctx, loc, func(el *rod.Element) error {
		var err error
		text, err = el.Text()
		return err
	})
	return text, err
}

func (r *Rod) Close() error {
	err := r.browser.Close()
	r.launcher.Cleanup()
	return err
}

func stringList(res *proto.RuntimeRemoteObject) []string {
	var out []string
	for _, v := range res.Value.Arr() {
		if s := v.Str(); s != "" {
			out = append(out, s)
		}
	}
	return out
}
