package issuance

import "github.com/roach88/instrumentd/internal/ir"

// transitions is the state graph shared by every variant. Variants refine
// guards and fund movements, never the shape.
var transitions = map[ir.IssuanceState][]ir.IssuanceState{
	ir.StateInitiated: {ir.StateEngageable, ir.StateUnfunded},
	ir.StateEngageable: {
		ir.StateEngaged,
		ir.StateUnfunded,
		ir.StateCancelled,
		ir.StateCompleteNotEngaged,
	},
	ir.StateEngaged: {ir.StateCompleteEngaged, ir.StateDelinquent},
}

// CanTransition reports whether from -> to is an edge of the state graph.
func CanTransition(from, to ir.IssuanceState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidWalk reports whether states is a valid walk of the graph starting at
// Initiated. Used to check recorded histories.
func ValidWalk(states []ir.IssuanceState) bool {
	if len(states) == 0 {
		return true
	}
	if states[0] != ir.StateInitiated {
		return false
	}
	for k := 1; k < len(states); k++ {
		if !CanTransition(states[k-1], states[k]) {
			return false
		}
	}
	return true
}
