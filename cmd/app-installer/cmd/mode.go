package cmd

// The packager rewrites buildModeMarker to extractModeMarker in the copy of
// this program it turns into an installer. Both must keep the same length.
const (
	buildModeMarker   = "app-installer:run-mode=interactive"
	extractModeMarker = "app-installer:run-mode=selfextract"
)

//nolint:gochecknoglobals // Patched in packed installers, never assigned.
var modeMarker = buildModeMarker

// isSelfExtracting reports whether this program is a packed installer.
func isSelfExtracting() bool {
	return modeMarker == extractModeMarker
}
