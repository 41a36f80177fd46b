package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iskolarlink/iskolarlink-backend/pkg/enums"
)

// TrackerHistoryEntry is an insert-only audit row for one tracker mutation.
// RemainingAfter is the record's remaining balance after the mutation.
type TrackerHistoryEntry struct {
	ID             int64                `gorm:"column:id;primaryKey;autoIncrement"`
	RecordID       uuid.UUID            `gorm:"column:record_id;type:uuid;not null"`
	Program        enums.TrackerProgram `gorm:"column:program;not null"`
	ScholarID      uuid.UUID            `gorm:"column:scholar_id;type:uuid;not null"`
	Action         enums.TrackerAction  `gorm:"column:action;not null"`
	Amount         decimal.Decimal      `gorm:"column:amount;type:numeric(14,2);not null"`
	RemainingAfter decimal.Decimal      `gorm:"column:remaining_after;type:numeric(14,2);not null"`
	PerformedBy    *uuid.UUID           `gorm:"column:performed_by;type:uuid"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (TrackerHistoryEntry) TableName() string { return "tracker_history_entries" }
