package enums

import "fmt"

// TrackerAction is the kind of mutation a history entry records.
type TrackerAction string

const (
	TrackerActionSetBudget TrackerAction = "set_budget"
	TrackerActionConsume   TrackerAction = "consume"
	TrackerActionReset     TrackerAction = "reset"
)

var validTrackerActions = []TrackerAction{
	TrackerActionSetBudget,
	TrackerActionConsume,
	TrackerActionReset,
}

func (a TrackerAction) IsValid() bool {
	for _, candidate := range validTrackerActions {
		if candidate == a {
			return true
		}
	}
	return false
}

func ParseTrackerAction(value string) (TrackerAction, error) {
	for _, candidate := range validTrackerActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tracker action %q", value)
}
