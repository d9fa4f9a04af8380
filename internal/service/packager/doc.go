// Package packager creates the self-extracting installer.
//
// The running installer program is copied as the stub, its mode marker is
// switched to self-extract, and the staged tree is appended as hex payload
// lines. The result is written next to the operator's home directory by
// default and marked executable.
package packager
