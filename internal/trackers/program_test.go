package trackers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iskolarlink/iskolarlink-backend/pkg/enums"
)

func TestEveryProgramHasConfig(t *testing.T) {
	paths := map[string]bool{}
	for _, program := range enums.TrackerPrograms() {
		cfg, ok := ConfigFor(program)
		assert.True(t, ok, program)
		assert.NotEmpty(t, cfg.BasePath)
		assert.NotEmpty(t, cfg.ConsumeVerb)
		assert.False(t, paths[cfg.BasePath], "duplicate base path %s", cfg.BasePath)
		paths[cfg.BasePath] = true
	}
	assert.Len(t, Programs(), len(enums.TrackerPrograms()))

	_, ok := ConfigFor("bogus")
	assert.False(t, ok)
}

func TestActionLabels(t *testing.T) {
	cases := []struct {
		program enums.TrackerProgram
		action  enums.TrackerAction
		want    string
	}{
		{enums.TrackerProgramAllowance, enums.TrackerActionConsume, "Given"},
		{enums.TrackerProgramBookReimbursement, enums.TrackerActionConsume, "Reimbursed"},
		{enums.TrackerProgramTuitionPayment, enums.TrackerActionConsume, "Pay"},
		{enums.TrackerProgramTuitionReimbursement, enums.TrackerActionConsume, "Reimbursed"},
		{enums.TrackerProgramTuitionPayment, enums.TrackerActionSetBudget, "Set Budget"},
		{enums.TrackerProgramAllowance, enums.TrackerActionReset, "Reset"},
		{"bogus", enums.TrackerActionConsume, "consume"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ActionLabel(tc.program, tc.action))
	}
}
