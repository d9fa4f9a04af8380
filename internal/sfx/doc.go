// Package sfx implements the self-extracting installer format.
//
// A packed installer is the installer program itself (the stub) with its mode
// marker rewritten, followed by one sentinel line and the zipped staged tree
// as hex-encoded chunk lines:
//
//	<stub bytes>
//	# APP_DIR
//	# 504b0304...
//	# ...
//
// Pack produces that layout from a staged directory and Unpack scans a packed
// file for the sentinel, decodes every following line back into the zip and
// extracts it.
package sfx
