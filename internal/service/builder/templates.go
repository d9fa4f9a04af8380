package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/oshokin/app-installer/internal/domain/release"
	"github.com/oshokin/app-installer/internal/service/common"
)

// templateData feeds the generated scripts and unit.
type templateData struct {
	Target      string
	Name        string
	InstallDir  string
	ServiceDir  string
	BinLinkDir  string
	ServiceUnit string
}

//nolint:gochecknoglobals // Parsed once, read-only.
var (
	launcherTemplate = template.Must(template.New("launcher").Parse(`#!/bin/sh
export QTDIR={{.InstallDir}}
export QT_PLUGIN_PATH={{.InstallDir}}
export LD_LIBRARY_PATH="{{.InstallDir}}/lib:$LD_LIBRARY_PATH"
exec {{.InstallDir}}/{{.Target}} "$@"
`))

	serviceTemplate = template.Must(template.New("service").Parse(`[Unit]
Description={{.Name}} Host Daemon
After=network.target

[Service]
Type=simple
User={{.Target}}
Restart=on-failure
RestartSec=5
TimeoutStopSec=infinity
ExecStart=/usr/bin/env {{.Target}} -host
ExecStop=/usr/bin/env {{.Target}} -stop

[Install]
WantedBy=multi-user.target
`))

	uninstallTemplate = template.Must(template.New("uninstall").Parse(`#!/bin/sh
systemctl -q stop {{.Target}}
systemctl -q disable {{.Target}}
rm -v {{.ServiceDir}}/{{.ServiceUnit}}
rm -v {{.BinLinkDir}}/{{.Target}}
rm -rv {{.InstallDir}}
userdel {{.Target}}
`))
)

// writeGeneratedFiles renders the launcher, unit and uninstall script into dir.
func (b *builder) writeGeneratedFiles(dir string) error {
	data := templateData{
		Target:      b.manifest.Target,
		Name:        b.manifest.Name,
		InstallDir:  release.InstallDirPlaceholder,
		ServiceDir:  b.cfg.ServiceDir,
		BinLinkDir:  b.cfg.BinLinkDir,
		ServiceUnit: release.ServiceUnit(b.manifest.Target),
	}

	files := []struct {
		name string
		tmpl *template.Template
		mode os.FileMode
	}{
		{release.LauncherScript(data.Target), launcherTemplate, common.ExecutableMode},
		{data.ServiceUnit, serviceTemplate, 0o644},
		{release.UninstallScript, uninstallTemplate, common.ExecutableMode},
	}

	for _, f := range files {
		if err := renderFile(filepath.Join(dir, f.name), f.tmpl, data, f.mode); err != nil {
			return fmt.Errorf("generate %s: %w", f.name, err)
		}
	}

	return nil
}

func renderFile(path string, tmpl *template.Template, data templateData, mode os.FileMode) error {
	out, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}

	if err = tmpl.Execute(out, data); err != nil {
		_ = out.Close()
		return err
	}

	if err = out.Close(); err != nil {
		return err
	}

	return os.Chmod(path, mode)
}
