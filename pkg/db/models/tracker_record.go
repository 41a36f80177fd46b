package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iskolarlink/iskolarlink-backend/pkg/enums"
)

// TrackerRecord holds one scholar's running budget for one program.
// FullName and BatchYear are copied from the scholar when the record is created
// or its budget is set; they are not refreshed afterwards.
type TrackerRecord struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Program        enums.TrackerProgram `gorm:"column:program;not null;uniqueIndex:tracker_records_program_scholar_key,priority:1"`
	ScholarID      uuid.UUID            `gorm:"column:scholar_id;type:uuid;not null;uniqueIndex:tracker_records_program_scholar_key,priority:2"`
	FullName       string               `gorm:"column:full_name;not null"`
	BatchYear      string               `gorm:"column:batch_year;not null"`
	AllottedBudget decimal.Decimal      `gorm:"column:allotted_budget;type:numeric(14,2);not null"`
	TotalConsumed  decimal.Decimal      `gorm:"column:total_consumed;type:numeric(14,2);not null"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (TrackerRecord) TableName() string { return "tracker_records" }

// Remaining is budget minus consumed. It goes negative on overspend.
func (r TrackerRecord) Remaining() decimal.Decimal {
	return r.AllottedBudget.Sub(r.TotalConsumed)
}
