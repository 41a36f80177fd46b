package trackers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iskolarlink/iskolarlink-backend/internal/scholars"
	"github.com/iskolarlink/iskolarlink-backend/pkg/db/models"
	"github.com/iskolarlink/iskolarlink-backend/pkg/enums"
	pkgerrors "github.com/iskolarlink/iskolarlink-backend/pkg/errors"
	"github.com/iskolarlink/iskolarlink-backend/pkg/logger"
	"github.com/iskolarlink/iskolarlink-backend/pkg/metrics"
)

const defaultReconcileBatchSize = 100

// Directory is the source of verified scholars.
type Directory interface {
	FindVerifiedScholars(ctx context.Context) ([]scholars.Scholar, error)
	FindVerifiedScholarByID(ctx context.Context, id uuid.UUID) (*scholars.Scholar, error)
}

// ReconcilerParams configure a Reconciler.
type ReconcilerParams struct {
	Repo      Repository
	Directory Directory
	Logger    *logger.Logger
	Metrics   *metrics.TrackerMetrics
	BatchSize int
	Clock     func() time.Time
}

// Reconciler makes sure every verified scholar has a record in each program.
type Reconciler struct {
	repo      Repository
	directory Directory
	logg      *logger.Logger
	metrics   *metrics.TrackerMetrics
	batchSize int
	now       func() time.Time
}

// NewReconciler validates dependencies and builds a Reconciler.
func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("tracker repository required")
	}
	if params.Directory == nil {
		return nil, fmt.Errorf("scholar directory required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultReconcileBatchSize
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Reconciler{
		repo:      params.Repo,
		directory: params.Directory,
		logg:      params.Logger,
		metrics:   params.Metrics,
		batchSize: batchSize,
		now:       clock,
	}, nil
}

// EnsureRecordsForVerified creates zeroed records for verified scholars that
// have none in program and returns how many were created. Existing records are
// never modified and no history is written.
func (r *Reconciler) EnsureRecordsForVerified(ctx context.Context, program enums.TrackerProgram) (int, error) {
	if !program.IsValid() {
		return 0, invalidProgram(program)
	}
	verified, err := r.directory.FindVerifiedScholars(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list verified scholars")
	}
	return r.ensureFor(ctx, program, verified)
}

func (r *Reconciler) ensureFor(ctx context.Context, program enums.TrackerProgram, verified []scholars.Scholar) (int, error) {
	existing, err := r.repo.ListScholarIDs(ctx, program)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tracker records")
	}
	have := make(map[uuid.UUID]struct{}, len(existing)+len(verified))
	for _, id := range existing {
		have[id] = struct{}{}
	}

	now := r.now().UTC()
	missing := make([]models.TrackerRecord, 0)
	for _, scholar := range verified {
		if _, ok := have[scholar.ID]; ok {
			continue
		}
		have[scholar.ID] = struct{}{}
		missing = append(missing, models.TrackerRecord{
			ID:             uuid.New(),
			Program:        program,
			ScholarID:      scholar.ID,
			FullName:       scholar.FullName,
			BatchYear:      scholar.BatchYear,
			AllottedBudget: decimal.Zero,
			TotalConsumed:  decimal.Zero,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	if len(missing) == 0 {
		return 0, nil
	}

	inserted, err := r.repo.InsertMissing(ctx, missing, r.batchSize)
	r.metrics.AddRecordsCreated(string(program), inserted)
	if err != nil {
		return inserted, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create missing tracker records")
	}
	if inserted > 0 {
		logCtx := r.logg.WithFields(ctx, map[string]any{
			"event":    "tracker.records_reconciled",
			"program":  string(program),
			"inserted": inserted,
		})
		r.logg.Info(logCtx, "created missing tracker records")
	}
	return inserted, nil
}

func invalidProgram(program enums.TrackerProgram) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown tracker program %q", program))
}
