// Package monitor implements the real-time TUI dashboard for GPU telemetry.
//
// The dashboard renders one card per configured connection, and inside each
// card one section per GPU with utilization, memory, and temperature graphs.
// Colors follow configurable warning/critical thresholds and the layout
// adapts to terminal size.
//
// # Architecture
//
// The package uses the Bubble Tea framework (Model-Update-View):
//
//   - Model: connections, device snapshots, selection, theme, status line
//   - Update: keystrokes, feed events from the telemetry manager, ticks
//   - View: renders the current state to a string
//
// The model never touches connection internals. It drives a
// telemetry.Manager through its public operations and reads immutable
// snapshots back.
//
// # Message Flow
//
//  1. waitForEvent blocks on the manager's ChannelFeed and yields a feedMsg
//  2. Update refreshes the affected connection's snapshot and re-arms the wait
//  3. A periodic tickMsg resyncs every snapshot, covering events the feed
//     dropped when the UI fell behind
//  4. View re-renders with the new data
//
// # Layout Modes
//
//	LayoutMinimal  (<80 cols)  - Latest values only, no graphs
//	LayoutCompact  (80-120)    - Single-row sparklines
//	LayoutStandard (120-160)   - Braille graphs, two cards per row
//	LayoutWide     (160+)      - Braille graphs, three or more per row
//
// # Keyboard Shortcuts
//
// Bindings live in keybindings.go:
//
//	q, Ctrl+C   - Quit
//	c / d       - Connect / disconnect selected
//	a / x       - Connect all / disconnect all
//	l           - Toggle live streaming
//	r           - Request a one-shot sample
//	t           - Cycle theme (system, light, dark)
//	j/k, ↑/↓    - Navigate connections
//	Enter / Esc - Detail view / back
//	?           - Toggle help overlay
package monitor
