package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aedworks/coverplan/internal/pipeline"
)

// PlanningJob re-executes the planning pipeline on schedule so fresh
// input snapshots are picked up without a restart.
type PlanningJob struct {
	pipe    *pipeline.Pipeline
	timeout time.Duration
	log     zerolog.Logger
}

// NewPlanningJob creates a scheduled planning run. timeout bounds one
// full run; zero means no bound.
func NewPlanningJob(pipe *pipeline.Pipeline, timeout time.Duration, log zerolog.Logger) *PlanningJob {
	return &PlanningJob{
		pipe:    pipe,
		timeout: timeout,
		log:     log.With().Str("job", "planning").Logger(),
	}
}

// Name implements Job.
func (j *PlanningJob) Name() string { return "planning_run" }

// Run implements Job.
func (j *PlanningJob) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	rep, err := j.pipe.Run(ctx)
	if err != nil {
		return err
	}

	j.log.Info().
		Str("run_id", rep.RunID).
		Int("assigned", rep.Assigned).
		Int("unassigned", rep.Unassigned).
		Msg("Scheduled planning run complete")
	return nil
}
