// Package common holds helpers shared by the builder and installer services.
//
// It runs external tools behind the Runner interface, copies staged files,
// fingerprints them for the manifest and detects the account running the
// program.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
