// Package release contains the core domain type describing a staged build.
//
// A Manifest names the build target, its version and display name, and
// optionally the checksums of every staged file. Readers always address the
// fields by name.
package release
