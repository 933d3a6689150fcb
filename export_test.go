package xagent

// ForceState bypasses Transition so tests can plant states the loop never produces.
func ForceState(a *Agent, s State) { a.state.Store(int32(s)) }
