package browser

import (
	"context"
	"testing"

	"github.com/AlfredBerg/accom-crawler/internal/crawl"
	"github.com/stretchr/testify/assert"
)

func TestHandleOpensEveryLink(t *testing.T) {
	var opened []string
	out := &Output{Open: func(url string) { opened = append(opened, url) }}

	res := &crawl.Result{Links: []string{"https://x/listing/1", "https://x/listing/2"}}
	assert.NoError(t, out.Handle(context.Background(), res))
	assert.Equal(t, res.Links, opened)
}

func TestHandleStopsWhenCancelled(t *testing.T) {
	var opened []string
	out := &Output{Open: func(url string) { opened = append(opened, url) }}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := out.Handle(ctx, &crawl.Result{Links: []string{"https://x/listing/1"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, opened)
}
