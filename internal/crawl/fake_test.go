package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AlfredBerg/accom-crawler/internal/config"
	"github.com/AlfredBerg/accom-crawler/internal/session"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakePage struct {
	links      []string
	containers map[string][]string
	texts      map[string]string
	// clicks maps a locator value to the page it leads to.
	clicks map[string]string
}

// fakeSession is an in-memory browsing session over a fixed set of pages.
type fakeSession struct {
	pages    map[string]*fakePage
	current  string
	fail     map[string]error
	panicOn  string
	calls    []string
	navigate []string
}

func newFakeSession(pages map[string]*fakePage) *fakeSession {
	return &fakeSession{pages: pages, fail: map[string]error{}}
}

func (f *fakeSession) page() *fakePage {
	if p, ok := f.pages[f.current]; ok {
		return p
	}
	return &fakePage{}
}

func (f *fakeSession) record(call string) error {
	f.calls = append(f.calls, call)
	return f.fail[call]
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	if url == f.panicOn {
		panic("unexpected markup on " + url)
	}
	f.navigate = append(f.navigate, url)
	if err := f.record("navigate:" + url); err != nil {
		return err
	}
	f.current = url
	return nil
}

func (f *fakeSession) URL(context.Context) (string, error) {
	return f.current, nil
}

func (f *fakeSession) Click(_ context.Context, loc session.Locator) error {
	if err := f.record("click:" + loc.String()); err != nil {
		return err
	}
	if to, ok := f.page().clicks[loc.Value]; ok {
		f.current = to
	}
	return nil
}

func (f *fakeSession) TypeText(_ context.Context, loc session.Locator, text string) error {
	return f.record(fmt.Sprintf("type:%s:%s", loc, text))
}

func (f *fakeSession) PressKey(_ context.Context, key session.Key) error {
	return f.record("key:" + key.String())
}

func (f *fakeSession) SelectValue(_ context.Context, loc session.Locator, value string) error {
	return f.record(fmt.Sprintf("select:%s:%s", loc, value))
}

func (f *fakeSession) Evaluate(_ context.Context, _ string, args ...any) error {
	return f.record(fmt.Sprintf("eval:%v", args))
}

func (f *fakeSession) WaitIdle(context.Context, time.Duration) error {
	return f.record("wait")
}

func (f *fakeSession) Hyperlinks(context.Context) ([]string, error) {
	return f.page().links, nil
}

func (f *fakeSession) HyperlinksWithin(_ context.Context, container session.Locator) ([]string, error) {
	hrefs, ok := f.page().containers[container.Value]
	if !ok {
		return nil, session.ErrNotFound
	}
	return hrefs, nil
}

func (f *fakeSession) Text(_ context.Context, loc session.Locator) (string, error) {
	text, ok := f.page().texts[loc.Value]
	if !ok {
		return "", session.ErrNotFound
	}
	return text, nil
}

func (f *fakeSession) Close() error { return nil }

func (f *fakeSession) count(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

// detailServer answers every request with the body registered for its
// URL, or 500 when there is none.
type detailServer map[string]string

func (d detailServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, ok := d[r.URL.String()]
	if !ok {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	fmt.Fprint(w, body)
}

type handlerTransport struct {
	handler http.Handler
}

func (t handlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	rec := httptest.NewRecorder()
	t.handler.ServeHTTP(rec, req)
	return rec.Result(), nil
}

func bathrooms(n int) string {
	return fmt.Sprintf(`<html><body><ul class="facts"><li>%d bathrooms</li></ul></body></html>`, n)
}

func testVerifier(details detailServer, logger *zap.Logger) *Verifier {
	client := &http.Client{Transport: handlerTransport{handler: details}}
	return NewVerifier(client, config.Verify{Workers: 4, Timeout: time.Second, MaxBody: 1 << 20}, logger)
}

var bathroomDescriptor = config.Verification{Selector: ".facts li", Pattern: `([0-9]+) bathrooms?`, Index: 1}

// recordSleeps replaces sleep for the duration of the test and returns the
// delays requested, in order.
func recordSleeps(t *testing.T) *[]time.Duration {
	t.Helper()
	var got []time.Duration
	orig := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		got = append(got, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleep = orig })
	return &got
}
