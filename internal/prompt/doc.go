// Package prompt asks the operator the few questions the build and install
// stages need: whether to change a default path, which path to use instead,
// and what to do when the installer is started without flags.
//
// TUI renders every question as a small bubbletea program. Defaults answers
// without asking, for unattended runs.
package prompt
