package trackers

import (
	"github.com/iskolarlink/iskolarlink-backend/pkg/enums"
)

// ProgramConfig carries the per-program naming used on the admin surface.
// Behavior is identical across programs; only labels and paths differ.
type ProgramConfig struct {
	Program            enums.TrackerProgram
	BasePath           string
	ConsumeVerb        string
	ConsumedLabel      string
	ConsumeActionLabel string
}

var programConfigs = []ProgramConfig{
	{
		Program:            enums.TrackerProgramAllowance,
		BasePath:           "/allowances",
		ConsumeVerb:        "given",
		ConsumedLabel:      "totalGiven",
		ConsumeActionLabel: "Given",
	},
	{
		Program:            enums.TrackerProgramBookReimbursement,
		BasePath:           "/book",
		ConsumeVerb:        "reimburse",
		ConsumedLabel:      "totalReimbursed",
		ConsumeActionLabel: "Reimbursed",
	},
	{
		Program:            enums.TrackerProgramTuitionPayment,
		BasePath:           "/tuition",
		ConsumeVerb:        "pay",
		ConsumedLabel:      "totalPaid",
		ConsumeActionLabel: "Pay",
	},
	{
		Program:            enums.TrackerProgramTuitionReimbursement,
		BasePath:           "/tuition-reimbursement",
		ConsumeVerb:        "reimburse",
		ConsumedLabel:      "totalReimbursed",
		ConsumeActionLabel: "Reimbursed",
	},
}

// Programs returns the configuration of every tracker program.
func Programs() []ProgramConfig {
	out := make([]ProgramConfig, len(programConfigs))
	copy(out, programConfigs)
	return out
}

// ConfigFor returns the configuration for program.
func ConfigFor(program enums.TrackerProgram) (ProgramConfig, bool) {
	for _, cfg := range programConfigs {
		if cfg.Program == program {
			return cfg, true
		}
	}
	return ProgramConfig{}, false
}

// ActionLabel is the human label shown in history for action under program.
func ActionLabel(program enums.TrackerProgram, action enums.TrackerAction) string {
	switch action {
	case enums.TrackerActionSetBudget:
		return "Set Budget"
	case enums.TrackerActionReset:
		return "Reset"
	case enums.TrackerActionConsume:
		if cfg, ok := ConfigFor(program); ok {
			return cfg.ConsumeActionLabel
		}
	}
	return string(action)
}
