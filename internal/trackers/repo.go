package trackers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/iskolarlink/iskolarlink-backend/internal/repo"
	"github.com/iskolarlink/iskolarlink-backend/pkg/db/models"
	"github.com/iskolarlink/iskolarlink-backend/pkg/enums"
)

var recordConflictColumns = []clause.Column{{Name: "program"}, {Name: "scholar_id"}}

// Repository persists tracker records and their history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByScholar(ctx context.Context, program enums.TrackerProgram, scholarID uuid.UUID) (*models.TrackerRecord, error)
	ListByProgram(ctx context.Context, program enums.TrackerProgram) ([]models.TrackerRecord, error)
	ListScholarIDs(ctx context.Context, program enums.TrackerProgram) ([]uuid.UUID, error)
	InsertMissing(ctx context.Context, records []models.TrackerRecord, batchSize int) (int, error)
	UpsertBudget(ctx context.Context, record *models.TrackerRecord) error
	UpsertConsumption(ctx context.Context, record *models.TrackerRecord) error
	UpsertReset(ctx context.Context, record *models.TrackerRecord) error
	AppendHistory(ctx context.Context, entry *models.TrackerHistoryEntry) error
	ListHistory(ctx context.Context, program enums.TrackerProgram, scholarID uuid.UUID) ([]models.TrackerHistoryEntry, error)
}

type gormRepository struct {
	repo.Base
}

// NewRepository binds a tracker repository to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{Base: repo.NewBase(db)}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{Base: r.Base.WithTx(tx)}
}

// FindByScholar returns nil without error when no record exists.
func (r *gormRepository) FindByScholar(ctx context.Context, program enums.TrackerProgram, scholarID uuid.UUID) (*models.TrackerRecord, error) {
	var record models.TrackerRecord
	err := r.DB(ctx).
		Where("program = ? AND scholar_id = ?", program, scholarID).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *gormRepository) ListByProgram(ctx context.Context, program enums.TrackerProgram) ([]models.TrackerRecord, error) {
	var records []models.TrackerRecord
	if err := r.DB(ctx).Where("program = ?", program).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *gormRepository) ListScholarIDs(ctx context.Context, program enums.TrackerProgram) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.DB(ctx).
		Model(&models.TrackerRecord{}).
		Where("program = ?", program).
		Pluck("scholar_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// InsertMissing creates records that do not exist yet and reports how many rows
// were written. Rows that collide on (program, scholar_id) are skipped, so a
// concurrent reconcile never overwrites live balances.
func (r *gormRepository) InsertMissing(ctx context.Context, records []models.TrackerRecord, batchSize int) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = len(records)
	}
	res := r.DB(ctx).
		Clauses(clause.OnConflict{Columns: recordConflictColumns, DoNothing: true}).
		CreateInBatches(&records, batchSize)
	if res.Error != nil {
		return int(res.RowsAffected), res.Error
	}
	return int(res.RowsAffected), nil
}

// UpsertBudget overwrites the allotted budget and refreshes the cached identity.
func (r *gormRepository) UpsertBudget(ctx context.Context, record *models.TrackerRecord) error {
	return r.upsert(ctx, record, clause.Assignments(map[string]any{
		"allotted_budget": gorm.Expr("excluded.allotted_budget"),
		"full_name":       gorm.Expr("excluded.full_name"),
		"batch_year":      gorm.Expr("excluded.batch_year"),
		"updated_at":      gorm.Expr("excluded.updated_at"),
	}))
}

// UpsertConsumption adds record.TotalConsumed to the stored total in one statement.
func (r *gormRepository) UpsertConsumption(ctx context.Context, record *models.TrackerRecord) error {
	return r.upsert(ctx, record, clause.Assignments(map[string]any{
		"total_consumed": gorm.Expr("tracker_records.total_consumed + excluded.total_consumed"),
		"updated_at":     gorm.Expr("excluded.updated_at"),
	}))
}

// UpsertReset zeroes both the budget and the consumed total.
func (r *gormRepository) UpsertReset(ctx context.Context, record *models.TrackerRecord) error {
	return r.upsert(ctx, record, clause.Assignments(map[string]any{
		"allotted_budget": decimal.Zero,
		"total_consumed":  decimal.Zero,
		"updated_at":      gorm.Expr("excluded.updated_at"),
	}))
}

func (r *gormRepository) upsert(ctx context.Context, record *models.TrackerRecord, set clause.Set) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.DB(ctx).
		Clauses(clause.OnConflict{Columns: recordConflictColumns, DoUpdates: set}).
		Create(record).Error
}

func (r *gormRepository) AppendHistory(ctx context.Context, entry *models.TrackerHistoryEntry) error {
	return r.DB(ctx).Create(entry).Error
}

// ListHistory returns newest entries first. Entries sharing a timestamp keep
// their reverse insertion order.
func (r *gormRepository) ListHistory(ctx context.Context, program enums.TrackerProgram, scholarID uuid.UUID) ([]models.TrackerHistoryEntry, error) {
	var entries []models.TrackerHistoryEntry
	if err := r.DB(ctx).
		Where("program = ? AND scholar_id = ?", program, scholarID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
