// Package pipeline runs named stages over a shared state value, stopping at
// the first failure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"alfredoptarigan/job-orchestrator/internal/apperr"
)

var errStop = errors.New("pipeline stopped")

// Stop ends the pipeline early without an error. Stages return it when a
// gate decides nothing further should run.
func Stop() error {
	return errStop
}

type StageFunc[S any] func(ctx context.Context, state *S) error

type stage[S any] struct {
	name   string
	fn     StageFunc[S]
	commit bool
}

type Pipeline[S any] struct {
	name   string
	stages []stage[S]
}

func New[S any](name string) *Pipeline[S] {
	return &Pipeline[S]{name: name}
}

// Then appends a stage and returns the pipeline for chaining.
func (p *Pipeline[S]) Then(name string, fn StageFunc[S]) *Pipeline[S] {
	p.stages = append(p.stages, stage[S]{name: name, fn: fn})
	return p
}

// ThenCommit appends a stage that records an effect an earlier stage already
// made irreversible. It runs even after ctx is done, on a context that is never
// cancelled.
func (p *Pipeline[S]) ThenCommit(name string, fn StageFunc[S]) *Pipeline[S] {
	p.stages = append(p.stages, stage[S]{name: name, fn: fn, commit: true})
	return p
}

// Run executes the stages in order. The first error aborts the run; typed
// errors from apperr are returned unchanged so callers can map them.
func (p *Pipeline[S]) Run(ctx context.Context, state *S) error {
	for _, st := range p.stages {
		stageCtx := ctx
		if st.commit {
			stageCtx = context.WithoutCancel(ctx)
		} else if err := ctx.Err(); err != nil {
			return apperr.External(apperr.ReasonTimeout, fmt.Sprintf("%s timed out before %s", p.name, st.name), err)
		}

		err := st.fn(stageCtx, state)
		if err == nil {
			continue
		}
		if errors.Is(err, errStop) {
			log.Printf("⏹️  [%s] stopped after %s", p.name, st.name)
			return nil
		}

		log.Printf("❌ [%s] %s failed: %v", p.name, st.name, err)
		if _, ok := apperr.As(err); ok {
			return err
		}
		return fmt.Errorf("%s: %s: %w", p.name, st.name, err)
	}

	return nil
}
