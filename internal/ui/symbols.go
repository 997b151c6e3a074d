package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess      = "✓"
	SymbolFail         = "✗"
	SymbolWarning      = "⚠"
	SymbolPending      = "○"
	SymbolComplete     = "●"
	SymbolConnected    = "◉"
	SymbolDisconnected = "◌"
	SymbolLive         = "▶"
)
