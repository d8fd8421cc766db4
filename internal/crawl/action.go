package crawl

import (
	"context"
	"fmt"
	"strconv"

	"github.com/AlfredBerg/accom-crawler/internal/config"
	"github.com/AlfredBerg/accom-crawler/internal/js"
	"github.com/AlfredBerg/accom-crawler/internal/session"
	"go.uber.org/zap"
)

// Outcome is the result of one search step. A failed step is skipped, it
// never stops the steps after it.
type Outcome struct {
	Step    config.Step
	Err     error
	Skipped bool
}

// Interpreter executes search steps against a session.
type Interpreter struct {
	Session      session.Session
	Requirements config.Requirements
	Timing       config.Timing
	Logger       *zap.Logger
	Site         string
}

// FillForm runs steps in order and returns one outcome per step.
func (in *Interpreter) FillForm(ctx context.Context, steps []config.Step) []Outcome {
	outcomes := make([]Outcome, 0, len(steps))
	for _, step := range steps {
		if ctx.Err() != nil {
			break
		}
		outcomes = append(outcomes, in.Execute(ctx, step))
	}
	return outcomes
}

// Execute runs one step, then waits the inter-step delay.
func (in *Interpreter) Execute(ctx context.Context, step config.Step) Outcome {
	out := Outcome{Step: step}
	if err := in.do(ctx, step); err != nil {
		in.Logger.Warn("search step failed, skipping",
			zap.String("site", in.Site),
			zap.String("target", step.Target),
			zap.Stringer("action", step.Action),
			zap.Error(err))
		out.Err = err
		out.Skipped = true
	}
	_ = sleep(ctx, in.Timing.StepDelay)
	return out
}

func (in *Interpreter) do(ctx context.Context, step config.Step) error {
	s := in.Session
	switch step.Action {
	case config.ActionClickXPath:
		return s.Click(ctx, session.XPath(step.Target))
	case config.ActionClickCSS:
		return s.Click(ctx, session.CSS(step.Target))
	case config.ActionClickID:
		return s.Click(ctx, session.ID(step.Target))
	case config.ActionClickLinkText:
		return s.Click(ctx, session.LinkText(step.Target))
	case config.ActionTypeLocation:
		loc := session.IDOrAuto(step.Target)
		if err := s.TypeText(ctx, loc, in.Requirements.Location); err != nil {
			return err
		}
		return s.PressKey(ctx, session.KeyTab)
	case config.ActionSelectBedsMin:
		return s.SelectValue(ctx, session.Auto(step.Target), strconv.Itoa(in.Requirements.BedsMin))
	case config.ActionSelectBedsMax:
		return s.SelectValue(ctx, session.Auto(step.Target), strconv.Itoa(in.Requirements.BedsMax))
	case config.ActionEvalClick:
		return s.Evaluate(ctx, js.EVAL_CLICK, step.Target)
	case config.ActionWaitNavigation:
		return s.WaitIdle(ctx, in.Timing.WaitTimeout)
	}
	return fmt.Errorf("%w: %s", ErrUnknownAction, step.Action)
}
