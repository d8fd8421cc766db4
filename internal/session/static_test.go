package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><body>
<ul id="pages"><li><a href="/results?page=1">1</a></li><li><a href="/results?page=2">2</a></li></ul>
<a href="/listing/42"> Nice flat </a>
<a href="https://elsewhere.example/listing/7">Remote</a>
<div class="count">Total: 3</div>
</body></html>`)
	})
	mux.HandleFunc("/listing/42", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "accom-test", r.UserAgent())
		fmt.Fprint(w, `<html><body><p class="facts">2 bathrooms</p></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStaticNavigateAndRead(t *testing.T) {
	srv := newSite(t)
	s := NewStatic(StaticOptions{Client: srv.Client(), UserAgent: "accom-test"})
	ctx := context.Background()

	_, err := s.Hyperlinks(ctx)
	assert.ErrorIs(t, err, ErrNoPage)
	_, err = s.URL(ctx)
	assert.ErrorIs(t, err, ErrNoPage)

	require.NoError(t, s.Navigate(ctx, srv.URL+"/"))

	links, err := s.Hyperlinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		srv.URL + "/results?page=1",
		srv.URL + "/results?page=2",
		srv.URL + "/listing/42",
		"https://elsewhere.example/listing/7",
	}, links)

	hrefs, err := s.HyperlinksWithin(ctx, ID("pages"))
	require.NoError(t, err)
	assert.Equal(t, []string{"/results?page=1", "/results?page=2"}, hrefs)

	text, err := s.Text(ctx, CSS(".count"))
	require.NoError(t, err)
	assert.Equal(t, "Total: 3", text)

	require.NoError(t, s.Click(ctx, LinkText("Nice flat")))
	u, err := s.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/listing/42", u)
	text, err = s.Text(ctx, CSS(".facts"))
	require.NoError(t, err)
	assert.Equal(t, "2 bathrooms", text)
}

func TestStaticErrors(t *testing.T) {
	srv := newSite(t)
	s := NewStatic(StaticOptions{Client: srv.Client()})
	ctx := context.Background()

	assert.ErrorIs(t, s.Navigate(ctx, srv.URL+"/missing"), ErrStatus)
	require.NoError(t, s.Navigate(ctx, srv.URL+"/"))

	_, err := s.Text(ctx, CSS(".nothing"))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Text(ctx, XPath("//div"))
	assert.ErrorIs(t, err, ErrUnsupported)

	assert.ErrorIs(t, s.Click(ctx, CSS(".count")), ErrUnsupported)
	assert.ErrorIs(t, s.TypeText(ctx, ID("loc"), "x"), ErrUnsupported)
	assert.ErrorIs(t, s.SelectValue(ctx, ID("beds"), "2"), ErrUnsupported)
	assert.ErrorIs(t, s.Evaluate(ctx, "() => true"), ErrUnsupported)
	assert.NoError(t, s.PressKey(ctx, KeyEnd))
}

func TestLocators(t *testing.T) {
	tests := []struct {
		in   string
		auto Locator
		id   Locator
	}{
		{in: "//ul[@id='x']", auto: XPath("//ul[@id='x']"), id: XPath("//ul[@id='x']")},
		{in: "(//a)[2]", auto: XPath("(//a)[2]"), id: XPath("(//a)[2]")},
		{in: "#loc", auto: CSS("#loc"), id: CSS("#loc")},
		{in: "location-input", auto: CSS("location-input"), id: ID("location-input")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.auto, Auto(tt.in), tt.in)
		assert.Equal(t, tt.id, IDOrAuto(tt.in), tt.in)
	}
	assert.Equal(t, "xpath=//a", XPath("//a").String())
}

func TestCallRendersArguments(t *testing.T) {
	expr, err := call("\n(a, b) => a + b\n", "x\"y", 2)
	require.NoError(t, err)
	assert.Equal(t, `((a, b) => a + b)("x\"y",2)`, expr)

	xp, err := linkTextXPath("Search")
	require.NoError(t, err)
	assert.Equal(t, `//a[normalize-space(.)="Search"]`, xp)
	_, err = linkTextXPath(`it's "here"`)
	assert.ErrorIs(t, err, ErrUnsupported)
}
