package browser

import (
	"context"

	"github.com/AlfredBerg/accom-crawler/internal/crawl"
	"github.com/go-rod/rod/lib/launcher"
	"go.uber.org/zap"
)

// Output opens every place of a run in the user's default browser.
type Output struct {
	Logger *zap.Logger
	// Open defaults to launcher.Open.
	Open func(url string)
}

func (o *Output) Handle(ctx context.Context, res *crawl.Result) error {
	open := o.Open
	if open == nil {
		open = launcher.Open
	}
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, link := range res.Links {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Debug("opening place", zap.String("url", link))
		open(link)
	}
	return nil
}
