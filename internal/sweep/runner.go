package sweep

import (
	"context"
	"fmt"
	"time"

	"promosweep/internal/logger"
	"promosweep/internal/model"
)

// Journal records outcomes for later reporting. It is never read back to
// resume work.
type Journal interface {
	BeginRun(ctx context.Context, action model.Action, total int) (int64, error)
	RecordOutcome(ctx context.Context, runID int64, o model.Outcome) error
}

type RunProgress struct {
	Index   int // 1-based
	Total   int
	Email   string
	Outcome *model.Outcome // nil when the sender is about to be processed
}

// Runner processes selected senders one at a time. A failure for one sender
// is logged and recorded; it never stops the others.
type Runner struct {
	exec    *Executor
	journal Journal
	log     logger.Logger
	now     func() time.Time
}

// NewRunner builds a runner. journal may be nil.
func NewRunner(exec *Executor, journal Journal, log logger.Logger) *Runner {
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{exec: exec, journal: journal, log: log, now: time.Now}
}

// Run is one pass of an action over a selection.
type Run struct {
	r      *Runner
	id     int64
	action model.Action
}

// Start opens a run. A journal failure is logged and the run goes ahead
// unrecorded.
func (r *Runner) Start(ctx context.Context, action model.Action, total int) *Run {
	run := &Run{r: r, action: action}
	if r.journal != nil {
		id, err := r.journal.BeginRun(ctx, action, total)
		if err != nil {
			r.log.Warn(fmt.Sprintf("Journal unavailable, outcomes will not be recorded: %v", err))
		} else {
			run.id = id
		}
	}
	return run
}

// Process applies the run's action to one sender:
// unsubscribe (best effort) or create a trash filter, then delete existing
// mail. A filter failure skips the delete.
func (run *Run) Process(ctx context.Context, email string) model.Outcome {
	r := run.r
	o := model.Outcome{Email: email, Action: run.action, Status: model.StatusPending}

	err := func() error {
		switch run.action {
		case model.ActionUnsubscribe:
			o.Unsubscribed = r.exec.Unsubscribe(ctx, email)
			if !o.Unsubscribed {
				r.log.Warn(fmt.Sprintf("Could not unsubscribe from %s; deleting anyway", email))
			}
		case model.ActionFilter:
			if err := r.exec.CreateFilter(ctx, email); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown action %q", run.action)
		}
		n, err := r.exec.DeleteMessages(ctx, email)
		o.Deleted = n
		return err
	}()

	o.ProcessedAt = r.now()
	if err != nil {
		o.Status = model.StatusFailed
		o.Err = err.Error()
		r.log.Error(fmt.Sprintf("Error processing %s: %v", email, err))
	} else {
		o.Status = model.StatusProcessed
	}

	if r.journal != nil && run.id != 0 {
		if err := r.journal.RecordOutcome(ctx, run.id, o); err != nil {
			r.log.Warn(fmt.Sprintf("Could not record outcome for %s: %v", email, err))
		}
	}
	return o
}

// RunAll processes the selection in order. It stops early only when ctx is
// cancelled; the returned outcomes cover the senders actually processed.
func (r *Runner) RunAll(ctx context.Context, selection []string, action model.Action, progress func(RunProgress)) []model.Outcome {
	run := r.Start(ctx, action, len(selection))
	outcomes := make([]model.Outcome, 0, len(selection))
	for i, email := range selection {
		if err := ctx.Err(); err != nil {
			r.log.Warn(fmt.Sprintf("Stopped after %d of %d senders: %v", i, len(selection), err))
			break
		}
		if progress != nil {
			progress(RunProgress{Index: i + 1, Total: len(selection), Email: email})
		}
		o := run.Process(ctx, email)
		outcomes = append(outcomes, o)
		if progress != nil {
			progress(RunProgress{Index: i + 1, Total: len(selection), Email: email, Outcome: &o})
		}
	}
	return outcomes
}
