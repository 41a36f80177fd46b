package enums

import "fmt"

// TrackerProgram identifies which budget program a tracker record belongs to.
type TrackerProgram string

const (
	TrackerProgramAllowance            TrackerProgram = "allowance"
	TrackerProgramBookReimbursement    TrackerProgram = "book_reimbursement"
	TrackerProgramTuitionPayment       TrackerProgram = "tuition_payment"
	TrackerProgramTuitionReimbursement TrackerProgram = "tuition_reimbursement"
)

var validTrackerPrograms = []TrackerProgram{
	TrackerProgramAllowance,
	TrackerProgramBookReimbursement,
	TrackerProgramTuitionPayment,
	TrackerProgramTuitionReimbursement,
}

// TrackerPrograms returns every program in a stable order.
func TrackerPrograms() []TrackerProgram {
	out := make([]TrackerProgram, len(validTrackerPrograms))
	copy(out, validTrackerPrograms)
	return out
}

// IsValid reports whether the value matches a known program.
func (p TrackerProgram) IsValid() bool {
	for _, candidate := range validTrackerPrograms {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseTrackerProgram converts raw input into a TrackerProgram.
func ParseTrackerProgram(value string) (TrackerProgram, error) {
	for _, candidate := range validTrackerPrograms {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tracker program %q", value)
}
