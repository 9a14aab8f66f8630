// Package service runs download batches: it normalizes the input, checks the
// required tools, downloads every URL and folds the successes into the
// session's result store.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"vidbatch/internal/config"
	"vidbatch/internal/depmanager"
	"vidbatch/internal/downloader"
	"vidbatch/internal/entity"
	"vidbatch/internal/errs"
	"vidbatch/internal/observability"
	"vidbatch/internal/storage"
	"vidbatch/pkg/urls"

	"golang.org/x/sync/errgroup"
)

// Prober reports which required tools are available.
type Prober interface {
	RequiredTools() []depmanager.BinaryName
	Probe(tools ...depmanager.BinaryName) []entity.CapabilityCheck
}

// Batch is the batch orchestrator.
type Batch struct {
	log      *slog.Logger
	cfg      *config.Config
	prober   Prober
	executor downloader.Executor
	metrics  *observability.Metrics

	// aborted is canceled by Abort; it is the only thing that stops a started batch.
	aborted context.Context
	abort   context.CancelFunc
}

// New creates a batch orchestrator.
func New(
	cfg *config.Config,
	log *slog.Logger,
	prober Prober,
	executor downloader.Executor,
	metrics *observability.Metrics,
) *Batch {
	aborted, abort := context.WithCancel(context.Background())

	return &Batch{
		log:      log.With(slog.String("package", "service")),
		cfg:      cfg,
		prober:   prober,
		executor: executor,
		metrics:  metrics,
		aborted:  aborted,
		abort:    abort,
	}
}

// Capabilities probes the required tools.
func (svc *Batch) Capabilities() []entity.CapabilityCheck {
	return svc.prober.Probe(svc.prober.RequiredTools()...)
}

// Run downloads every URL of rawText into store and returns one outcome per
// URL in input order. It returns errs.ErrNoInput when rawText holds no URL and
// a *errs.PreconditionError when a required tool is missing; in both cases no
// download is attempted. Failed downloads are outcomes, not errors.
//
// Once downloads start the batch runs to completion, even if ctx is canceled.
// Only Abort stops it early; the interrupted items become failure outcomes.
func (svc *Batch) Run(ctx context.Context, store *storage.Store, rawText string) ([]entity.Outcome, error) {
	log := svc.log.With(slog.String("dir", store.Dir()))

	targets := urls.SplitLines(rawText)
	if len(targets) == 0 {
		svc.metrics.RecordBatch("no_input")

		return nil, errs.ErrNoInput
	}

	checks := svc.Capabilities()
	if missing := depmanager.Missing(checks); len(missing) > 0 {
		svc.metrics.RecordBatch("precondition")
		log.WarnContext(ctx, "required tools missing", slog.Any("missing", missing))

		return nil, &errs.PreconditionError{Missing: missing}
	}

	first := store.Reserve(len(targets))

	log.InfoContext(ctx, "batch started",
		slog.Int("urls", len(targets)),
		slog.Int("first_ordinal", first),
		slog.Int("workers", svc.cfg.Job.Workers))

	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	defer stop()

	unregister := context.AfterFunc(svc.aborted, stop)
	defer unregister()
	outcomes := make([]entity.Outcome, len(targets))

	var group errgroup.Group

	group.SetLimit(max(svc.cfg.Job.Workers, 1))

	for idx, url := range targets {
		ordinal := first + idx

		group.Go(func() error {
			outcomes[idx] = svc.execute(runCtx, ordinal, url, store.Destination(ordinal))

			return nil
		})
	}

	// workers report through outcomes and never return an error
	_ = group.Wait()

	entries := make([]entity.Entry, 0, len(outcomes))

	for _, outcome := range outcomes {
		if outcome.Succeeded() {
			entries = append(entries, storage.NewEntry(outcome))
		}
	}

	if err := store.Append(runCtx, entries...); err != nil {
		return outcomes, fmt.Errorf("append results: %w", err)
	}

	svc.metrics.RecordBatch("ok")

	log.InfoContext(ctx, "batch finished",
		slog.Int("urls", len(targets)),
		slog.Int("succeeded", len(entries)),
		slog.Int("failed", len(targets)-len(entries)))

	return outcomes, nil
}

// Abort cancels every running and future batch. Running downloader
// processes are killed. It is meant for shutdown once waiting has timed out.
func (svc *Batch) Abort() {
	svc.abort()
}

func (svc *Batch) execute(ctx context.Context, ordinal int, url, destination string) (outcome entity.Outcome) {
	done := svc.metrics.ItemTimer()

	defer func() {
		if rvr := recover(); rvr != nil {
			svc.log.ErrorContext(ctx, "executor panic", slog.String("url", url), slog.Any("panic", rvr))
			outcome = entity.Outcome{Status: entity.OutcomeFailure, Error: fmt.Sprintf("%v: %v", errs.ErrDownloadFailed, rvr)}
		}

		if outcome.Status != entity.OutcomeSuccess {
			outcome.Status = entity.OutcomeFailure
		}

		outcome.Ordinal = ordinal
		outcome.URL = url

		svc.metrics.RecordItem(string(outcome.Status))
		done()
	}()

	return svc.executor.Execute(ctx, url, destination)
}
