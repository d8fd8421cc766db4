package crawl

import (
	"context"
	"time"

	"github.com/AlfredBerg/accom-crawler/internal/config"
	"github.com/AlfredBerg/accom-crawler/internal/session"
	"go.uber.org/zap"
)

// Job crawls one site on a session it does not own.
type Job struct {
	Session      session.Session
	Site         *config.Site
	Requirements config.Requirements
	Timing       config.Timing
	Verifier     *Verifier
	Logger       *zap.Logger
}

func (j *Job) logger() *zap.Logger {
	if j.Logger == nil {
		return zap.NewNop()
	}
	return j.Logger
}

// sleep waits for d or until ctx is done. Every fixed delay of a crawl goes
// through it; tests swap it to observe them.
var sleep = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
