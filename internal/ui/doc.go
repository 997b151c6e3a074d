// Package ui provides the terminal building blocks for gpuwatch's
// non-dashboard commands: semantic colors and symbols, a line spinner for
// connection tests, the connection table printed by "conn list", and the
// SSH alias picker offered by "conn add".
//
// The full-screen dashboard lives in internal/monitor and does not use this
// package's ANSI palette.
//
// # Spinner Usage
//
//	s := ui.NewSpinner("Connecting to lab")
//	s.Start()
//	// ... do work ...
//	s.Success() // or s.Fail()
//
// # Color Scheme
//
//	ColorSuccess   (green)  - Successful operations
//	ColorError     (red)    - Failures and errors
//	ColorWarning   (yellow) - Warnings
//	ColorInfo      (cyan)   - Informational messages
//	ColorMuted     (gray)   - Secondary text, timing info
package ui
