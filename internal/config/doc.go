// Package config defines the settings shared by app-builder and app-installer
// and provides helpers to load, validate and save them in YAML format.
//
// Every field has a default matching the layout the build scripts always
// used (app_dir staging tree, /opt install root, systemd unit directory), so
// the settings file is optional. Environment variables override the file.
package config
