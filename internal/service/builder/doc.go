// Package builder runs the build stage.
//
// It reads the application identity from the project header, drives the GUI
// toolkit build (qmake, make), stages the executable, toolkit plugins and the
// shared libraries reported by ldd into the platform layout, generates the
// launcher, systemd unit and uninstall script, and finally writes the
// manifest whose presence marks the staged tree as complete.
package builder
