// Package monitor implements the terminal dashboard (nodeboard watch).
//
// The dashboard shows one card per node in the board's fixed display order:
// a status indicator and label, the node notice, CPU, RAM and disk bars,
// one block per GPU with its process tags, and the usage summary.
//
// # Architecture
//
// The package uses the Bubble Tea framework (Model-Update-View). The model
// never fetches telemetry itself. A poll.Scheduler running alongside the
// program writes into a panel.Store; the model subscribes to the store and
// re-reads it whenever a change is signalled:
//
//  1. waitForChange blocks on the store subscription
//  2. storeChangedMsg arrives and the model copies the panels
//  3. View renders the cards from the copy
//
// Subscription sends coalesce, so a burst of panel updates produces a
// single re-render.
//
// # Keyboard Shortcuts
//
//	q, Ctrl+C   - Quit
//	r           - Refresh all nodes now
//	j/k, ↑/↓    - Select node (scroll in detail view)
//	Enter       - Expand node detail view
//	Esc         - Back
//	?           - Toggle help overlay
package monitor
