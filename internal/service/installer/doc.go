// Package installer installs a staged tree onto the local machine.
//
// The Linux procedure runs any previous uninstall script, stops running
// instances, copies the executable (checksum verified through go-update),
// libraries, scripts and the systemd unit, links the launcher into the bin
// directory, creates the service account and enables the service.
package installer
