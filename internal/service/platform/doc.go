// Package platform answers the OS-specific questions of the build and install
// stages: whether the current system is supported, where applications are
// installed by default, and whether a file system forbids executing binaries.
package platform
