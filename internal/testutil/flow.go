package testutil

// FixedFlowGenerator hands out the same flow token for every action.
//
// Action ids exclude the flow token, so a fixed token only matters for
// byte-identical journal dumps and golden traces.
//
// Thread-safety: stateless and safe for concurrent use.
type FixedFlowGenerator struct {
	token string
}

// NewFixedFlowGenerator creates a generator returning token. An empty token
// becomes "test-flow-default".
func NewFixedFlowGenerator(token string) *FixedFlowGenerator {
	if token == "" {
		token = "test-flow-default"
	}
	return &FixedFlowGenerator{token: token}
}

// Generate implements engine.FlowTokenGenerator.
func (g *FixedFlowGenerator) Generate() string {
	return g.token
}
