// Package ui provides terminal output helpers shared by the one-shot
// commands: the node status table, a polling spinner, the SSH host picker
// used by init, and the color palette.
//
// Colors are ANSI codes for broad terminal compatibility. Usage classes
// (green, yellow, orange, red) map through UsageColor. Call DisableColors
// for --no-color or when output is not a terminal.
package ui
