package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"

	"github.com/YashMayekar/Resizer/internal/entities"
	"github.com/YashMayekar/Resizer/internal/media"
	"github.com/YashMayekar/Resizer/internal/registry"
)

// Dispatcher resolves the adapter for a media kind.
type Dispatcher interface {
	AdapterFor(kind entities.MediaKind) (media.Adapter, error)
}

// Mirror receives finished artifacts for asynchronous upload to object
// storage. Optional; never on the serve path.
type Mirror interface {
	Enqueue(ctx context.Context, key, contentType, path string) error
}

// Executor drives one job to a terminal state. It is the single failure
// boundary of the system: every adapter or collaborator error, and any
// panic, ends as Fail on the registry; nothing escapes the job goroutine or
// crashes the serving process.
type Executor struct {
	registry registry.Registry
	adapters Dispatcher
	mirror   Mirror
	slots    chan struct{}
	log      zerolog.Logger
}

// New builds an executor that runs at most maxConcurrent jobs at a time.
// maxConcurrent <= 0 means unlimited.
func New(reg registry.Registry, adapters Dispatcher, mirror Mirror, maxConcurrent int, log zerolog.Logger) *Executor {
	var slots chan struct{}
	if maxConcurrent > 0 {
		slots = make(chan struct{}, maxConcurrent)
	}
	return &Executor{
		registry: reg,
		adapters: adapters,
		mirror:   mirror,
		slots:    slots,
		log:      log,
	}
}

// Run executes one job and blocks until it reaches a terminal state. Callers
// launch it on its own goroutine; the request path never waits on it.
// Cancelling ctx aborts the job between frames and marks it failed.
func (e *Executor) Run(ctx context.Context, id string, kind entities.MediaKind, req media.Request) {
	// Registry mutations must land even when the job ctx is already
	// cancelled, otherwise an aborted job would stay "processing" forever.
	regCtx := context.WithoutCancel(ctx)

	defer func() {
		if rec := recover(); rec != nil {
			e.log.Error().Str("task_id", id).Interface("panic", rec).Msg("adapter panicked")
			sentry.CurrentHub().Recover(rec)
			_ = e.registry.Fail(regCtx, id)
		}
	}()

	if e.slots != nil {
		select {
		case e.slots <- struct{}{}:
			defer func() { <-e.slots }()
		case <-ctx.Done():
			e.log.Info().Str("task_id", id).Msg("job cancelled before start")
			_ = e.registry.Fail(regCtx, id)
			return
		}
	}

	e.log.Info().Str("task_id", id).Str("kind", string(kind)).
		Int("percentage", req.Percentage).Bool("upscale", req.Upscale).
		Msg("starting job")

	adapter, err := e.adapters.AdapterFor(kind)
	if err == nil {
		err = adapter.Process(ctx, req, func(p int) {
			e.registry.SetProgress(regCtx, id, p)
		})
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			e.log.Info().Str("task_id", id).Msg("job cancelled")
		} else {
			e.log.Error().Err(err).Str("task_id", id).Msg("job failed")
			sentry.CaptureException(fmt.Errorf("task %s: %w", id, err))
		}
		_ = e.registry.Fail(regCtx, id)
		return
	}

	if err := e.registry.Complete(regCtx, id, req.OutputPath); err != nil {
		e.log.Warn().Err(err).Str("task_id", id).Msg("could not record completion")
		return
	}
	e.log.Info().Str("task_id", id).Msg("job completed")

	if e.mirror != nil {
		if err := e.mirror.Enqueue(regCtx, id+"/output."+req.Extension, "", req.OutputPath); err != nil {
			e.log.Warn().Err(err).Str("task_id", id).Msg("artifact mirror enqueue failed")
		}
	}
}
