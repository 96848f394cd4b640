// Package pipeline orchestrates one complete planning run: load inputs,
// fit and apply the risk model, derive priorities, then run device
// allocation and responder assignment in parallel and assemble the report.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aedworks/coverplan/internal/domain"
	"github.com/aedworks/coverplan/internal/modules/allocation"
	"github.com/aedworks/coverplan/internal/modules/assignment"
	"github.com/aedworks/coverplan/internal/modules/features"
	"github.com/aedworks/coverplan/internal/modules/priority"
	"github.com/aedworks/coverplan/internal/modules/report"
	"github.com/aedworks/coverplan/internal/modules/risk"
	"github.com/aedworks/coverplan/internal/modules/snapshots"
)

// Config holds the per-run parameters the pipeline threads through its
// stages.
type Config struct {
	ZonesPath      string
	RespondersPath string
	PriorPath      string // empty = no baseline to diff against

	TotalUnits int
	DMaxMeters float64

	ModelPath string // empty = do not persist the fitted model
}

// Pipeline wires the planning stages together. Stages are injected so
// tests can exercise the orchestration with small fixtures.
type Pipeline struct {
	cfg       Config
	scorer    *risk.Scorer
	index     *priority.Index
	allocator *allocation.Allocator
	optimizer *assignment.Optimizer
	repo      *snapshots.Repository
	log       zerolog.Logger
}

// New creates a pipeline. repo may be nil to skip persistence.
func New(
	cfg Config,
	scorer *risk.Scorer,
	index *priority.Index,
	allocator *allocation.Allocator,
	optimizer *assignment.Optimizer,
	repo *snapshots.Repository,
	log zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		scorer:    scorer,
		index:     index,
		allocator: allocator,
		optimizer: optimizer,
		repo:      repo,
		log:       log.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes one planning run end to end and returns the report. The
// run is atomic from the caller's perspective: any stage failure aborts
// the run and nothing is persisted.
func (p *Pipeline) Run(ctx context.Context) (*report.Report, error) {
	runID := uuid.New().String()
	started := time.Now()
	log := p.log.With().Str("run_id", runID).Logger()
	log.Info().Msg("Planning run started")

	table, responders, prior, err := p.loadInputs()
	if err != nil {
		return nil, err
	}

	zones, importance, err := p.deriveZones(table)
	if err != nil {
		return nil, err
	}

	inv := domain.DeviceInventory{
		TotalUnits: p.cfg.TotalUnits,
		Prior:      prior,
	}

	// Allocation and assignment read the same derived zones but are
	// otherwise independent, so they run concurrently. Each writes only
	// its own result slot.
	var counts map[string]int
	var assignRes *domain.AssignmentResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zp := make([]allocation.ZonePriority, len(zones))
		for i, z := range zones {
			zp[i] = allocation.ZonePriority{Code: z.Code, Priority: z.PriorityWeight}
		}
		c, err := p.allocator.Allocate(p.cfg.TotalUnits, zp)
		if err != nil {
			return fmt.Errorf("device allocation: %w", err)
		}
		counts = c
		return nil
	})
	g.Go(func() error {
		m, err := assignment.BuildDistanceMatrix(gctx, zones, responders, p.cfg.DMaxMeters)
		if err != nil {
			return fmt.Errorf("distance matrix: %w", err)
		}
		res, err := p.optimizer.Optimize(gctx, zones, responders, m)
		if err != nil {
			return err
		}
		assignRes = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	inv.Assigned = counts

	rep := report.Build(runID, zones, inv, assignRes)

	if p.repo != nil {
		summary := snapshots.RunSummary{
			RunID:      runID,
			CreatedAt:  started.UTC(),
			TotalUnits: p.cfg.TotalUnits,
			Zones:      len(zones),
			Responders: len(responders),
			Objective:  assignRes.Objective,
		}
		if err := p.repo.SaveRun(summary, zones, importance, inv, assignRes); err != nil {
			return nil, fmt.Errorf("persist run snapshot: %w", err)
		}
	}

	if p.cfg.ModelPath != "" {
		if err := p.scorer.Save(p.cfg.ModelPath); err != nil {
			// The run itself succeeded; a stale model file only costs the
			// next run a refit.
			log.Warn().Err(err).Msg("Failed to persist risk model")
		}
	}

	log.Info().
		Int("zones", len(zones)).
		Int("responders", len(responders)).
		Int("assigned", rep.Assigned).
		Int("unassigned", rep.Unassigned).
		Dur("elapsed", time.Since(started)).
		Msg("Planning run complete")

	return rep, nil
}

// loadInputs reads and validates all three input snapshots.
func (p *Pipeline) loadInputs() (*features.Table, []domain.Responder, map[string]int, error) {
	rows, err := features.LoadZones(p.cfg.ZonesPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load zones: %w", err)
	}
	table, err := features.Build(rows, p.log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build feature table: %w", err)
	}

	responders, err := features.LoadResponders(p.cfg.RespondersPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load responders: %w", err)
	}

	prior := map[string]int{}
	if p.cfg.PriorPath != "" {
		prior, err = features.LoadPriorAllocation(p.cfg.PriorPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("load prior allocation: %w", err)
		}
	}

	return table, responders, prior, nil
}

// deriveZones fits the risk model on historical incident counts, scores
// every zone, and computes priority weights. Returns zones carrying both
// derived values, plus the model's feature-importance ranking.
func (p *Pipeline) deriveZones(table *features.Table) ([]domain.Zone, []risk.Importance, error) {
	targets, err := table.Column(features.ColIncidentCount)
	if err != nil {
		return nil, nil, err
	}
	if err := p.scorer.Fit(table, targets); err != nil {
		return nil, nil, fmt.Errorf("fit risk model: %w", err)
	}

	scores, err := p.scorer.Score(table)
	if err != nil {
		return nil, nil, fmt.Errorf("score zones: %w", err)
	}
	weights, err := p.index.Compute(scores, table.DensityProxy())
	if err != nil {
		return nil, nil, fmt.Errorf("compute priorities: %w", err)
	}
	importance, err := p.scorer.FeatureImportance()
	if err != nil {
		return nil, nil, err
	}

	zones := make([]domain.Zone, table.Len())
	for i := range zones {
		zones[i] = table.Zones[i]
		zones[i].RiskScore = scores[i]
		zones[i].PriorityWeight = weights[i]
	}
	return zones, importance, nil
}
