package trackers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/iskolarlink/iskolarlink-backend/internal/scholars"
	"github.com/iskolarlink/iskolarlink-backend/pkg/db/models"
	"github.com/iskolarlink/iskolarlink-backend/pkg/enums"
	pkgerrors "github.com/iskolarlink/iskolarlink-backend/pkg/errors"
	"github.com/iskolarlink/iskolarlink-backend/pkg/logger"
	"github.com/iskolarlink/iskolarlink-backend/pkg/metrics"
)

// maxAmount is the largest value numeric(14,2) can hold.
var maxAmount = decimal.RequireFromString("999999999999.99")

var errTotalOverflow = errors.New("tracker total exceeds the maximum amount")

// Service is the budget tracker engine shared by every program.
type Service interface {
	EnsureRecordsForVerified(ctx context.Context, program enums.TrackerProgram) (int, error)
	SetBudget(ctx context.Context, program enums.TrackerProgram, scholarID uuid.UUID, budget float64, actor *uuid.UUID) (*RecordView, error)
	RecordConsumption(ctx context.Context, program enums.TrackerProgram, scholarID uuid.UUID, increment float64, actor *uuid.UUID) (*RecordView, error)
	Reset(ctx context.Context, program enums.TrackerProgram, scholarID uuid.UUID, actor *uuid.UUID) (*RecordView, error)
	ListSnapshot(ctx context.Context, program enums.TrackerProgram) ([]SnapshotRow, error)
	GetHistory(ctx context.Context, program enums.TrackerProgram, scholarID uuid.UUID) ([]HistoryView, error)
}

// NameResolver maps account ids to display names.
type NameResolver interface {
	ResolveNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wire the tracker service dependencies.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Directory Directory
	Names     NameResolver
	Logger    *logger.Logger
	Metrics   *metrics.TrackerMetrics
	BatchSize int
	Clock     func() time.Time
}

type service struct {
	repo       Repository
	tx         txRunner
	directory  Directory
	names      NameResolver
	reconciler *Reconciler
	logg       *logger.Logger
	metrics    *metrics.TrackerMetrics
	now        func() time.Time
}

// NewService builds the tracker service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Names == nil {
		return nil, fmt.Errorf("name resolver required")
	}
	reconciler, err := NewReconciler(ReconcilerParams{
		Repo:      params.Repo,
		Directory: params.Directory,
		Logger:    params.Logger,
		Metrics:   params.Metrics,
		BatchSize: params.BatchSize,
		Clock:     params.Clock,
	})
	if err != nil {
		return nil, err
	}
	return &service{
		repo:       params.Repo,
		tx:         params.Tx,
		directory:  params.Directory,
		names:      params.Names,
		reconciler: reconciler,
		logg:       params.Logger,
		metrics:    params.Metrics,
		now:        reconciler.now,
	}, nil
}

func (s *service) EnsureRecordsForVerified(ctx context.Context, program enums.TrackerProgram) (int, error) {
	return s.reconciler.EnsureRecordsForVerified(ctx, program)
}

func (s *service) SetBudget(ctx context.Context, program enums.TrackerProgram, scholarID uuid.UUID, budget float64, actor *uuid.UUID) (*RecordView, error) {
	value, err := parseAmount("allottedBudget", budget, false)
	if err != nil {
		return nil, err
	}
	scholar, err := s.verifiedScholar(ctx, program, scholarID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, scholar, mutation{
		program: program,
		action:  enums.TrackerActionSetBudget,
		amount:  value,
		actor:   actor,
		write: func(ctx context.Context, repo Repository, record *models.TrackerRecord) error {
			record.AllottedBudget = value
			return repo.UpsertBudget(ctx, record)
		},
	})
}

func (s *service) RecordConsumption(ctx context.Context, program enums.TrackerProgram, scholarID uuid.UUID, increment float64, actor *uuid.UUID) (*RecordView, error) {
	value, err := parseAmount("addAmount", increment, true)
	if err != nil {
		return nil, err
	}
	scholar, err := s.verifiedScholar(ctx, program, scholarID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, scholar, mutation{
		program: program,
		action:  enums.TrackerActionConsume,
		field:   "addAmount",
		amount:  value,
		actor:   actor,
		write: func(ctx context.Context, repo Repository, record *models.TrackerRecord) error {
			record.TotalConsumed = value
			return repo.UpsertConsumption(ctx, record)
		},
	})
}

func (s *service) Reset(ctx context.Context, program enums.TrackerProgram, scholarID uuid.UUID, actor *uuid.UUID) (*RecordView, error) {
	scholar, err := s.verifiedScholar(ctx, program, scholarID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, scholar, mutation{
		program: program,
		action:  enums.TrackerActionReset,
		amount:  decimal.Zero,
		actor:   actor,
		write: func(ctx context.Context, repo Repository, record *models.TrackerRecord) error {
			return repo.UpsertReset(ctx, record)
		},
	})
}

func (s *service) ListSnapshot(ctx context.Context, program enums.TrackerProgram) ([]SnapshotRow, error) {
	if !program.IsValid() {
		return nil, invalidProgram(program)
	}
	verified, err := s.directory.FindVerifiedScholars(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list verified scholars")
	}
	if _, err := s.reconciler.ensureFor(ctx, program, verified); err != nil {
		return nil, err
	}
	records, err := s.repo.ListByProgram(ctx, program)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tracker records")
	}

	byScholar := make(map[uuid.UUID]models.TrackerRecord, len(records))
	for _, record := range records {
		byScholar[record.ScholarID] = record
	}

	rows := make([]SnapshotRow, 0, len(verified))
	seen := make(map[uuid.UUID]struct{}, len(verified))
	for _, scholar := range verified {
		if _, dup := seen[scholar.ID]; dup {
			continue
		}
		seen[scholar.ID] = struct{}{}
		row := SnapshotRow{
			ScholarID: scholar.ID,
			FullName:  scholar.FullName,
			BatchYear: scholar.BatchYear,
		}
		if record, ok := byScholar[scholar.ID]; ok {
			updated := record.UpdatedAt
			row.AllottedBudget = amount(record.AllottedBudget)
			row.TotalConsumed = amount(record.TotalConsumed)
			row.Remaining = amount(record.Remaining())
			row.LastUpdated = &updated
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := strings.ToLower(rows[i].FullName), strings.ToLower(rows[j].FullName)
		if a != b {
			return a < b
		}
		return rows[i].ScholarID.String() < rows[j].ScholarID.String()
	})
	return rows, nil
}

func (s *service) GetHistory(ctx context.Context, program enums.TrackerProgram, scholarID uuid.UUID) ([]HistoryView, error) {
	if _, err := s.verifiedScholar(ctx, program, scholarID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListHistory(ctx, program, scholarID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tracker history")
	}

	performers := make([]uuid.UUID, 0)
	seen := map[uuid.UUID]struct{}{}
	for _, entry := range entries {
		if entry.PerformedBy == nil {
			continue
		}
		if _, ok := seen[*entry.PerformedBy]; ok {
			continue
		}
		seen[*entry.PerformedBy] = struct{}{}
		performers = append(performers, *entry.PerformedBy)
	}

	names := map[uuid.UUID]string{}
	if len(performers) > 0 {
		resolved, err := s.names.ResolveNames(ctx, performers)
		if err != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"event": "tracker.performer_lookup_failed",
				"error": err.Error(),
			})
			s.logg.Warn(logCtx, "could not resolve history performer names")
		} else {
			names = resolved
		}
	}

	views := make([]HistoryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, toHistoryView(entry, names))
	}
	return views, nil
}

func (s *service) verifiedScholar(ctx context.Context, program enums.TrackerProgram, scholarID uuid.UUID) (*scholars.Scholar, error) {
	if !program.IsValid() {
		return nil, invalidProgram(program)
	}
	scholar, err := s.directory.FindVerifiedScholarByID(ctx, scholarID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup scholar")
	}
	if scholar == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "scholar not found or not verified")
	}
	return scholar, nil
}

type mutation struct {
	program enums.TrackerProgram
	action  enums.TrackerAction
	field   string
	amount  decimal.Decimal
	actor   *uuid.UUID
	write   func(ctx context.Context, repo Repository, record *models.TrackerRecord) error
}

// apply runs the store mutation in a transaction, reads the row back in the
// same transaction and then appends history. A failed history append is logged
// and counted but never undoes the committed mutation.
func (s *service) apply(ctx context.Context, scholar *scholars.Scholar, m mutation) (*RecordView, error) {
	ctx = context.WithoutCancel(ctx)
	ctx = s.logg.WithProgram(ctx, string(m.program))
	ctx = s.logg.WithScholarID(ctx, scholar.ID.String())

	now := s.now().UTC()
	candidate := &models.TrackerRecord{
		ID:             uuid.New(),
		Program:        m.program,
		ScholarID:      scholar.ID,
		FullName:       scholar.FullName,
		BatchYear:      scholar.BatchYear,
		AllottedBudget: decimal.Zero,
		TotalConsumed:  decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var stored *models.TrackerRecord
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := m.write(ctx, repo, candidate); err != nil {
			return err
		}
		record, err := repo.FindByScholar(ctx, m.program, scholar.ID)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("tracker record for scholar %s missing after upsert", scholar.ID)
		}
		if record.TotalConsumed.GreaterThan(maxAmount) || record.AllottedBudget.GreaterThan(maxAmount) {
			return errTotalOverflow
		}
		stored = record
		return nil
	})
	if errors.Is(err, errTotalOverflow) || pkgerrors.IsNumericOverflow(err) {
		field := m.field
		if field == "" {
			field = "amount"
		}
		return nil, validationError(field, "pushes the total past the maximum amount")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply tracker mutation")
	}
	s.metrics.IncMutation(string(m.program), string(m.action))

	entry := &models.TrackerHistoryEntry{
		RecordID:       stored.ID,
		Program:        m.program,
		ScholarID:      scholar.ID,
		Action:         m.action,
		Amount:         m.amount,
		RemainingAfter: stored.Remaining(),
		PerformedBy:    m.actor,
		CreatedAt:      now,
	}
	if err := s.repo.AppendHistory(ctx, entry); err != nil {
		s.metrics.IncHistoryFailure(string(m.program))
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event":  "tracker.history_append_failed",
			"action": string(m.action),
			"error":  err.Error(),
		})
		s.logg.Warn(logCtx, "tracker history append failed")
	}

	view := toRecordView(*stored)
	return &view, nil
}

func parseAmount(field string, raw float64, positive bool) (decimal.Decimal, error) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return decimal.Zero, validationError(field, "must be a finite number")
	}
	value := decimal.NewFromFloat(raw).Round(2)
	switch {
	case positive && (raw <= 0 || !value.IsPositive()):
		return decimal.Zero, validationError(field, "must be at least 0.01")
	case !positive && raw < 0:
		return decimal.Zero, validationError(field, "must be 0 or greater")
	case value.GreaterThan(maxAmount):
		return decimal.Zero, validationError(field, "exceeds the maximum amount")
	}
	return value, nil
}

func validationError(field, reason string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s %s", field, reason)).
		WithDetails(map[string]string{field: reason})
}
