package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"spendsight/internal/log"
)

// Task fetches one resource. The fetch phase does I/O and returns a commit
// func that writes the result; commit and fail touch only the task's slot.
type Task struct {
	Name  string
	fetch func(ctx context.Context) (commit func(), err error)
	fail  func(err error)
}

// Bind ties a fetcher to the slot it fills.
func Bind[T any](slot *Slot[T], name string, fetcher func(ctx context.Context) (T, error)) Task {
	return Task{
		Name: name,
		fetch: func(ctx context.Context) (func(), error) {
			v, err := fetcher(ctx)
			if err != nil {
				return nil, err
			}
			return func() { slot.Set(v) }, nil
		},
		fail: slot.Fail,
	}
}

// Result reports the outcome of one task.
type Result struct {
	Name     string
	Err      error
	Dropped  bool
	Duration time.Duration
}

// ErrDropped marks a result discarded because its context ended first.
var ErrDropped = errors.New("fetch result dropped: context cancelled")

// Orchestrator runs tasks concurrently.
type Orchestrator struct {
	// Page labels log lines.
	Page string
	// Timeout bounds each task; zero means no per-task bound.
	Timeout time.Duration

	logger *log.StructuredLogger
}

// NewOrchestrator creates an orchestrator for one page.
func NewOrchestrator(page string, timeout time.Duration, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Orchestrator{
		Page:    page,
		Timeout: timeout,
		logger:  log.NewStructuredLogger(logger.WithComponent(log.ComponentFetch)),
	}
}

func (o *Orchestrator) taskContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout > 0 {
		return context.WithTimeout(ctx, o.Timeout)
	}
	return context.WithCancel(ctx)
}

// Independent runs every task concurrently and commits each result on its
// own. A failing task records its error in its slot and nothing else.
func (o *Orchestrator) Independent(ctx context.Context, tasks ...Task) []Result {
	results := make([]Result, len(tasks))
	var wg sync.WaitGroup

	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t Task) {
			defer wg.Done()
			start := time.Now()

			tctx, cancel := o.taskContext(ctx)
			commit, err := t.fetch(tctx)
			cancel()

			res := Result{Name: t.Name, Duration: time.Since(start)}
			switch {
			case ctx.Err() != nil:
				res.Dropped = true
				res.Err = ErrDropped
			case err != nil:
				res.Err = err
				t.fail(err)
				o.logger.LogFetchFailed(ctx, o.Page, t.Name, err)
			default:
				commit()
			}
			results[i] = res
		}(i, t)
	}

	wg.Wait()
	return results
}

// Joint runs every task concurrently and commits only if all succeed. The
// first failure cancels the rest and is recorded in every slot of the batch.
func (o *Orchestrator) Joint(ctx context.Context, tasks ...Task) error {
	commits := make([]func(), len(tasks))
	g, gctx := errgroup.WithContext(ctx)

	for i, t := range tasks {
		g.Go(func() error {
			tctx, cancel := o.taskContext(gctx)
			defer cancel()
			commit, err := t.fetch(tctx)
			if err != nil {
				return fmt.Errorf("%s: %w", t.Name, err)
			}
			commits[i] = commit
			return nil
		})
	}

	err := g.Wait()
	if ctx.Err() != nil {
		return ErrDropped
	}
	if err != nil {
		for _, t := range tasks {
			t.fail(err)
		}
		o.logger.LogFetchFailed(ctx, o.Page, "batch", err)
		return err
	}
	for _, commit := range commits {
		commit()
	}
	return nil
}
