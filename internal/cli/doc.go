// Package cli implements the gpuwatch command-line interface.
//
// Each Cobra command is a thin wrapper that parses flags and hands off to a
// plain function taking an io.Writer (connAdd, connList, watch, ...), which
// keeps the commands testable without a terminal.
//
// # Command Structure
//
//	gpuwatch conn add [name] [host] [port]   - Save a connection (tests it first)
//	gpuwatch conn remove [id|name]           - Remove a connection
//	gpuwatch conn list [--check]             - List saved connections
//	gpuwatch conn connect-test [ref]         - One /gpu round trip
//	gpuwatch watch                           - Live dashboard, or a line stream when piped
//	gpuwatch theme [show|set|cycle]          - Dashboard theme
//	gpuwatch config [show|set]               - Configuration
//
// # Sessions
//
// openSession loads and validates the config, opens the store and restores
// a telemetry.Manager from it. Commands close the session when done, which
// closes every socket and then the store.
//
// Package-level function variables (dialerFor, isInteractive, pickAlias,
// runDashboard, aliasConfigPath) are the seams tests replace.
package cli
