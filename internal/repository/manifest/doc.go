// Package manifest persists the release Manifest inside a staged tree.
//
// The FileRepository writes app-info.yaml at the tree root and reads it back,
// falling back to the positional three-line info.txt written by older builds.
package manifest
