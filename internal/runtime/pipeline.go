// Package runtime orchestrates pull runs: it resolves the time window,
// constructs the configured retrievers, drains them batch by batch through
// the transform pipeline into the store, and advances the watermark.
//
// Failure containment is scoped: a bad record fails alone, a bad batch
// stops only its source, and a bad source never blocks the sources after
// it. The watermark commits once, after every source had its chance.
package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/pullsync/runtime/internal/actions"
	"github.com/pullsync/runtime/internal/anonymize"
	"github.com/pullsync/runtime/internal/config"
	"github.com/pullsync/runtime/internal/errhandling"
	"github.com/pullsync/runtime/internal/logger"
	"github.com/pullsync/runtime/internal/registry"
	"github.com/pullsync/runtime/internal/retrievers"
	"github.com/pullsync/runtime/internal/store"
	"github.com/pullsync/runtime/internal/watermark"
	"github.com/pullsync/runtime/pkg/pull"
)

// Options carry the per-run command line overrides.
type Options struct {
	// StartTime overrides the watermark-derived window start when non-nil
	StartTime *time.Time

	// IgnoreDeleted skips upstream deletion handling for all sources
	IgnoreDeleted bool

	// MaxItems caps items pulled per source (0 = unlimited)
	MaxItems int

	// UpdateFields restricts which fields capable adapters re-pull
	UpdateFields []string

	// DryRun pulls and transforms but writes nothing and keeps the
	// watermark untouched
	DryRun bool
}

// Pipeline executes one pull run.
type Pipeline struct {
	cfg        *config.Config
	store      *store.Store
	watermarks *watermark.Store
	opts       Options
}

// New creates a pipeline over an opened store.
func New(cfg *config.Config, st *store.Store, opts Options) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		store:      st,
		watermarks: watermark.New(cfg.Watermark.Path),
		opts:       opts,
	}
}

// Run executes the pull: every enabled source in configuration order,
// then a single watermark commit. Run returns an error only for failures
// before the source loop begins; per-source failures are reported in the
// result instead.
func (p *Pipeline) Run(ctx context.Context) (*pull.RunResult, error) {
	startedAt := time.Now().UTC()

	since, err := p.resolveSince()
	if err != nil {
		return nil, err
	}

	dataUpdateID, err := p.store.NextDataUpdateID(ctx)
	if err != nil {
		return nil, err
	}

	result := &pull.RunResult{
		StartedAt:    startedAt,
		Since:        since,
		DataUpdateID: int(dataUpdateID),
	}
	logger.LogRunStart(since, int(dataUpdateID), len(p.cfg.Retrievers))

	anonCfg := anonymize.Config{
		SecretKey:      p.cfg.Anonymization.SecretKey,
		MinTokenLength: p.cfg.Anonymization.MinTokenLength,
		Region:         p.cfg.Anonymization.Region,
	}

	for _, rc := range p.cfg.Retrievers {
		sourceResult := p.runSource(ctx, rc, since, dataUpdateID, anonCfg)
		result.Sources = append(result.Sources, sourceResult)
		result.Succeeded += sourceResult.Succeeded
		result.Failed += sourceResult.Failed
	}

	// The watermark advances to this run's start regardless of source
	// outcomes: failed windows are re-covered by the read-time overlap,
	// and holding the watermark back would re-pull every healthy source.
	if !p.opts.DryRun {
		if err := p.watermarks.Commit(startedAt); err != nil {
			logger.Logger.Error("watermark commit failed", "error", err)
		} else {
			result.WatermarkCommitted = true
		}
	}

	result.CompletedAt = time.Now().UTC()
	logger.LogRunEnd(result.Succeeded, result.Failed, result.WatermarkCommitted,
		result.CompletedAt.Sub(startedAt))
	return result, nil
}

// resolveSince picks the window start: explicit override first, then the
// stored watermark minus the configured overlap, then the lookback default.
func (p *Pipeline) resolveSince() (time.Time, error) {
	if p.opts.StartTime != nil {
		return p.opts.StartTime.UTC(), nil
	}

	stored, err := p.watermarks.Load()
	if err != nil {
		return time.Time{}, err
	}
	if !stored.IsZero() {
		return stored.Add(-time.Duration(p.cfg.Watermark.OverlapMinutes) * time.Minute).UTC(), nil
	}

	return time.Now().UTC().Add(-time.Duration(p.cfg.Watermark.LookbackHours) * time.Hour), nil
}

// runSource pulls one configured source end to end. All failures are
// contained here; the returned result carries the outcome.
func (p *Pipeline) runSource(ctx context.Context, rc config.RetrieverConfig, since time.Time, dataUpdateID int64, anonCfg anonymize.Config) pull.SourceResult {
	start := time.Now()
	res := pull.SourceResult{Source: rc.SourceName, Type: rc.Type}
	log := logger.WithSource(rc.SourceName, rc.Type)

	if !rc.Enabled {
		res.Status = pull.StatusSkipped
		log.Info("source disabled, skipping")
		return res
	}

	constructor := registry.Get(rc.Type)
	if constructor == nil {
		res.Status = pull.StatusSkipped
		log.Warn("unknown source type, skipping",
			"known_types", registry.ListTypes())
		return res
	}

	maxItems := rc.MaxItems
	if p.opts.MaxItems > 0 && (maxItems == 0 || p.opts.MaxItems < maxItems) {
		maxItems = p.opts.MaxItems
	}

	retriever, err := constructor(retrievers.Params{
		Source:        rc.SourceName,
		StartTime:     since,
		IgnoreDeleted: p.opts.IgnoreDeleted,
		MaxItems:      maxItems,
		Credentials:   rc.Credentials,
		Extra:         rc.Params,
		UpdateFields:  p.opts.UpdateFields,
	})
	if err != nil {
		res.Status = pull.StatusSkipped
		log.Warn("source construction failed, skipping", "error", err)
		return res
	}
	defer retriever.Close()

	if len(p.opts.UpdateFields) > 0 {
		if fu, ok := retriever.(retrievers.FieldUpdater); !ok || !fu.SupportsFieldUpdates() {
			log.Warn("adapter cannot restrict re-pulled fields, pulling everything")
		}
	}

	filter, err := compileFilter(rc.SourceName, rc.Filter)
	if err != nil {
		res.Status = pull.StatusSkipped
		log.Warn("filter expression invalid, skipping source", "error", err)
		return res
	}

	transforms := actions.Compile(rc.PostRetrievalActions, anonCfg)

	drainErr := p.drain(ctx, retriever, filter, transforms, rc.SourceName, dataUpdateID, &res)
	if drainErr != nil {
		res.Error = &pull.SourceError{
			Code:    string(errhandling.GetErrorCategory(drainErr)),
			Message: drainErr.Error(),
		}
		if res.Succeeded > 0 {
			res.Status = pull.StatusPartial
		} else {
			res.Status = pull.StatusFailed
		}
		logger.LogSourceEnd(rc.SourceName, res.Status, res.Succeeded, res.Failed,
			time.Since(start), drainErr)
		return res
	}

	if !p.opts.IgnoreDeleted && !p.opts.DryRun {
		if syncer, ok := retriever.(retrievers.DeletionSyncer); ok {
			flagged, err := syncer.SyncDeletions(ctx, p.store)
			if err != nil {
				log.Warn("deletion sync failed", "error", err)
			} else {
				res.Deleted = flagged
			}
		}
	}

	res.Status = pull.StatusSuccess
	logger.LogSourceEnd(rc.SourceName, res.Status, res.Succeeded, res.Failed,
		time.Since(start), nil)
	return res
}

// drain pulls batches until the retriever is exhausted, pushing each
// through filter, transforms, and the store.
func (p *Pipeline) drain(ctx context.Context, retriever retrievers.Retriever, filter *recordFilter, transforms *actions.Map, source string, dataUpdateID int64, res *pull.SourceResult) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := retriever.Next(ctx)
		if errors.Is(err, retrievers.ErrExhausted) {
			return nil
		}
		if err != nil {
			return err
		}
		res.Batches++

		kept := make([]pull.Record, 0, len(batch))
		for _, rec := range batch {
			if !filter.keep(rec) {
				res.Filtered++
				continue
			}
			kept = append(kept, actions.Apply(transforms, rec))
		}

		if p.opts.DryRun {
			res.Succeeded += len(kept)
			continue
		}

		ok, failed := p.store.UpsertBatch(ctx, source, dataUpdateID, kept)
		res.Succeeded += ok
		res.Failed += failed
	}
}
