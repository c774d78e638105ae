package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Node reported a snapshot
	SymbolFail     = "✗" // Node offline
	SymbolPending  = "○" // Not polled yet
	SymbolProgress = "◐" // Poll in progress
	SymbolComplete = "●"
	SymbolSkipped  = "⊘" // Node disabled
)
