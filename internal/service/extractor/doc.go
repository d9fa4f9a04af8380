// Package extractor drives a self-extracting installer: it unpacks the payload
// appended to the running program into a temporary directory, installs it
// locally and removes the temporary copy.
package extractor
