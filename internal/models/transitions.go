package models

// AllowedTransitions is the closed transition table of the checkout state machine.
// Close() is not listed: it resets to StageSelection from any stage. Status
// message ticks stay inside StageProcessing and are not transitions.
var AllowedTransitions = map[Stage][]Stage{
	StageSelection: {
		StageCollectingCard,
		StageCollectingRedirect,
		StageCollectingBank,
	},
	StageCollectingCard:     {StageProcessing, StageSelection},
	StageCollectingRedirect: {StageProcessing, StageSelection},
	StageCollectingBank:     {StageProcessing, StageSelection},
	StageProcessing:         {StageSuccess},
	StageSuccess:            {StageSelection},
}

// CanTransition checks if a transition from one stage to another is allowed.
func CanTransition(from, to Stage) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
