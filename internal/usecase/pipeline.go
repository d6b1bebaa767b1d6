package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/analyzer"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/collector"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/dedup"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/domain"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/filter"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/notify"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/ports"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/render"
)

// Stage names the pipeline phases for logging.
type Stage string

const (
	StageCollecting    Stage = "collecting"
	StageFiltering     Stage = "filtering"
	StageDeduplicating Stage = "deduplicating"
	StageAnalyzing     Stage = "analyzing"
	StageFormatting    Stage = "formatting"
	StageNotifying     Stage = "notifying"
	StageCompleted     Stage = "completed"
	StageFailed        Stage = "failed"
)

// Pipeline runs one end-to-end collection cycle: collect from every source,
// filter and deduplicate, enrich through the analyzer, render per platform
// and deliver. Identities are marked seen only after the run completes
// without a fatal error, so a crashed run never silently swallows items.
type Pipeline struct {
	registry   *collector.Registry
	dedup      *dedup.Deduplicator
	analyzer   *analyzer.Analyzer
	dispatcher *notify.Dispatcher
	spec       domain.FilterSpec
	workers    int
	logger     *slog.Logger
}

func NewPipeline(
	registry *collector.Registry,
	dedup *dedup.Deduplicator,
	analyzer *analyzer.Analyzer,
	dispatcher *notify.Dispatcher,
	spec domain.FilterSpec,
	workers int,
	logger *slog.Logger,
) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		registry:   registry,
		dedup:      dedup,
		analyzer:   analyzer,
		dispatcher: dispatcher,
		spec:       spec,
		workers:    workers,
		logger:     logger,
	}
}

// Run executes one cycle and returns its summary. The run fails only when
// nothing could be collected at all, when the seen store is unreachable, or
// when the context ends; per-source and per-item failures degrade.
func (p *Pipeline) Run(ctx context.Context) (domain.RunSummary, error) {
	var summary domain.RunSummary

	p.logger.Info("pipeline stage", "stage", StageCollecting)
	raw, err := p.collect(ctx)
	if err != nil {
		p.logger.Error("pipeline stage", "stage", StageFailed, "error", err)
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	p.logger.Info("pipeline stage", "stage", StageFiltering, "items", len(raw))
	filtered := filter.Apply(raw, p.spec)

	p.logger.Info("pipeline stage", "stage", StageDeduplicating, "items", len(filtered))
	fresh, err := p.dedup.FilterNew(ctx, filtered)
	if err != nil {
		p.logger.Error("pipeline stage", "stage", StageFailed, "error", err)
		return summary, err
	}
	if len(fresh) == 0 {
		p.logger.Info("pipeline stage", "stage", StageCompleted, "items", 0)
		return summary, nil
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	p.logger.Info("pipeline stage", "stage", StageAnalyzing, "items", len(fresh))
	summary.Attempted = len(fresh)
	enriched := p.analyzer.EnrichAll(ctx, fresh, p.workers)
	for _, item := range enriched {
		if item.AnalysisError == domain.ErrKindNone {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	p.logger.Info("pipeline stage", "stage", StageFormatting)
	p.logger.Info("pipeline stage", "stage", StageNotifying)
	for _, platform := range p.dispatcher.Platforms() {
		msg, err := render.Digest(enriched, platform)
		if err != nil {
			p.logger.Error("render digest failed", "platform", platform, "error", err)
			summary.NotifyFailures++
			continue
		}
		if err := p.dispatcher.Send(ctx, msg); err != nil {
			p.logger.Error("delivery failed", "platform", platform, "error", err)
			summary.NotifyFailures++
		}
	}

	if err := p.dedup.MarkSeen(ctx, fresh); err != nil {
		p.logger.Error("pipeline stage", "stage", StageFailed, "error", err)
		return summary, err
	}

	p.logger.Info("pipeline stage", "stage", StageCompleted,
		"attempted", summary.Attempted,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"notify_failures", summary.NotifyFailures)
	return summary, nil
}

// collect fans out to every registered collector concurrently. A failed
// source is logged and skipped; only all sources failing is fatal.
func (p *Pipeline) collect(ctx context.Context) ([]domain.RawItem, error) {
	collectors := p.registry.All()
	if len(collectors) == 0 {
		return nil, errors.New("no collectors registered")
	}

	results := make([][]domain.RawItem, len(collectors))
	errs := make([]error, len(collectors))

	var wg sync.WaitGroup
	for i, c := range collectors {
		wg.Add(1)
		go func(i int, c ports.Collector) {
			defer wg.Done()
			items, err := c.Collect(ctx, p.spec)
			if err != nil {
				errs[i] = err
				p.logger.Warn("source collection failed", "source", c.Name(), "error", err)
				return
			}
			results[i] = items
			p.logger.Info("source collected", "source", c.Name(), "items", len(items))
		}(i, c)
	}
	wg.Wait()

	var all []domain.RawItem
	failures := 0
	for i := range collectors {
		if errs[i] != nil {
			failures++
			continue
		}
		all = append(all, results[i]...)
	}
	if failures == len(collectors) {
		return nil, fmt.Errorf("all sources failed: %w", errors.Join(errs...))
	}
	return all, nil
}
