// Package cli implements the nodeboard command-line interface.
//
// Each Cobra command is a thin wrapper around a function in this package
// that does the work, so the logic can be tested without going through
// flag parsing.
//
// # Command Structure
//
//	nodeboard serve      - Poll on the refresh interval and serve the web board
//	nodeboard watch      - Same board in a terminal UI
//	nodeboard snapshot   - Poll once, print the board
//	nodeboard status     - Poll once, print a node table
//	nodeboard doctor     - Diagnose settings, source and snapshots
//	nodeboard agent <n>  - Sample this machine, write <n>.json
//	nodeboard init       - Create config/, data/ and .nodeboard.yaml
//
// # Settings
//
// Process settings (source, timeouts, listen address, agent options) come
// from viper: defaults, then .nodeboard.yaml or ~/.config/nodeboard/config.yaml,
// then NODEBOARD_* environment variables, then flags. The root pre-run hook
// resolves them once unless a command is annotated with skipSettings.
//
// # Sessions
//
// serve, watch, snapshot and status share OpenSession: open the source,
// load the dashboard documents once, build the board, and create the
// scheduler that keeps it current. Close releases the source.
package cli
