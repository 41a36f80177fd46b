package trackers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iskolarlink/iskolarlink-backend/pkg/db/models"
	"github.com/iskolarlink/iskolarlink-backend/pkg/enums"
)

// RecordView is a tracker record as returned after a mutation.
type RecordView struct {
	ID             uuid.UUID            `json:"id"`
	Program        enums.TrackerProgram `json:"program"`
	ScholarID      uuid.UUID            `json:"scholarId"`
	FullName       string               `json:"fullName"`
	BatchYear      string               `json:"batchYear"`
	AllottedBudget float64              `json:"allottedBudget"`
	TotalConsumed  float64              `json:"totalConsumed"`
	ConsumedLabel  string               `json:"consumedLabel"`
	Remaining      float64              `json:"remaining"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

// SnapshotRow is one line of the per-program listing.
type SnapshotRow struct {
	ScholarID      uuid.UUID  `json:"scholarId"`
	FullName       string     `json:"fullName"`
	BatchYear      string     `json:"batchYear"`
	AllottedBudget float64    `json:"allottedBudget"`
	TotalConsumed  float64    `json:"totalConsumed"`
	Remaining      float64    `json:"remaining"`
	LastUpdated    *time.Time `json:"lastUpdated"`
}

// PerformerView identifies the account that performed a mutation.
type PerformerView struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"fullName"`
}

// HistoryView is one rendered history entry.
type HistoryView struct {
	Date           time.Time           `json:"date"`
	Action         enums.TrackerAction `json:"action"`
	ActionLabel    string              `json:"actionLabel"`
	Amount         float64             `json:"amount"`
	RemainingAfter float64             `json:"remainingAfter"`
	PerformedBy    *PerformerView      `json:"performedBy"`
}

func toRecordView(record models.TrackerRecord) RecordView {
	view := RecordView{
		ID:             record.ID,
		Program:        record.Program,
		ScholarID:      record.ScholarID,
		FullName:       record.FullName,
		BatchYear:      record.BatchYear,
		AllottedBudget: amount(record.AllottedBudget),
		TotalConsumed:  amount(record.TotalConsumed),
		Remaining:      amount(record.Remaining()),
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
	if cfg, ok := ConfigFor(record.Program); ok {
		view.ConsumedLabel = cfg.ConsumedLabel
	}
	return view
}

func toHistoryView(entry models.TrackerHistoryEntry, names map[uuid.UUID]string) HistoryView {
	view := HistoryView{
		Date:           entry.CreatedAt,
		Action:         entry.Action,
		ActionLabel:    ActionLabel(entry.Program, entry.Action),
		Amount:         amount(entry.Amount),
		RemainingAfter: amount(entry.RemainingAfter),
	}
	if entry.PerformedBy != nil {
		view.PerformedBy = &PerformerView{
			ID:       *entry.PerformedBy,
			FullName: names[*entry.PerformedBy],
		}
	}
	return view
}

// amounts are stored as numeric(14,2), so float64 holds them exactly enough for display
func amount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
