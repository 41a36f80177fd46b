package jobs

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/iskolarlink/iskolarlink-backend/pkg/enums"
	"github.com/iskolarlink/iskolarlink-backend/pkg/logger"
)

const TrackerBackfillJobName = "tracker-backfill"

type trackerReconciler interface {
	EnsureRecordsForVerified(ctx context.Context, program enums.TrackerProgram) (int, error)
}

type TrackerBackfillParams struct {
	Logger     *logger.Logger
	Reconciler trackerReconciler
	// Programs defaults to every tracker program.
	Programs []enums.TrackerProgram
}

// TrackerBackfillJob creates zeroed tracker records for every verified
// scholar that is missing one.
type TrackerBackfillJob struct {
	logg       *logger.Logger
	reconciler trackerReconciler
	programs   []enums.TrackerProgram
}

func NewTrackerBackfillJob(params TrackerBackfillParams) (*TrackerBackfillJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("tracker reconciler required")
	}
	programs := params.Programs
	if len(programs) == 0 {
		programs = enums.TrackerPrograms()
	}
	return &TrackerBackfillJob{
		logg:       params.Logger,
		reconciler: params.Reconciler,
		programs:   programs,
	}, nil
}

func (j *TrackerBackfillJob) Name() string { return TrackerBackfillJobName }

func (j *TrackerBackfillJob) Run(ctx context.Context) error {
	var errs error
	total := 0
	for _, program := range j.programs {
		inserted, err := j.reconciler.EnsureRecordsForVerified(ctx, program)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("program %s: %w", program, err))
			continue
		}
		total += inserted
		programCtx := j.logg.WithFields(ctx, map[string]any{
			"program":  string(program),
			"inserted": inserted,
		})
		j.logg.Info(programCtx, "tracker program backfilled")
	}
	j.logg.Info(j.logg.WithField(ctx, "inserted_total", total), "tracker backfill finished")
	return errs
}
