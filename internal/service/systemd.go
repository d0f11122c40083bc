// Package service installs the API server as a systemd unit.
package service

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"
)

const (
	// Name is the systemd unit name.
	Name = "kliiq-server"
	// UnitPath is where the unit file is written.
	UnitPath = "/etc/systemd/system/kliiq-server.service"
)

// ErrUnsupported indicates the host has no systemd.
var ErrUnsupported = errors.New("systemd services are only supported on Linux with systemctl")

// Status is what systemd reports about the unit.
type Status struct {
	ActiveState string `json:"active_state"`
	SubState    string `json:"sub_state"`
	Installed   bool   `json:"installed"`
	Enabled     bool   `json:"enabled"`
	Running     bool   `json:"running"`
}

// Unit holds the values rendered into the unit file.
type Unit struct {
	ExecPath   string
	ConfigPath string
	User       string
	WorkingDir string
}

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=Kliiq API
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
User={{.User}}
Group={{.User}}
WorkingDirectory={{.WorkingDir}}
Environment=APP_ENV=production
ExecStart={{.ExecPath}} -config {{.ConfigPath}}
Restart=on-failure
RestartSec=5

NoNewPrivileges=true
ProtectSystem=strict
ProtectHome=true
ReadWritePaths={{.WorkingDir}}
PrivateTmp=true

[Install]
WantedBy=multi-user.target
`))

// DefaultUnit points the unit at the running binary and /var/lib/kliiq.
func DefaultUnit() Unit {
	execPath, _ := os.Executable()
	if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = resolved
	}
	return Unit{
		ExecPath:   execPath,
		ConfigPath: "/etc/kliiq/config.yaml",
		User:       "kliiq",
		WorkingDir: "/var/lib/kliiq",
	}
}

// Render returns the unit file content.
func (u Unit) Render() (string, error) {
	var buf bytes.Buffer
	if err := unitTemplate.Execute(&buf, u); err != nil {
		return "", fmt.Errorf("failed to render unit: %w", err)
	}
	return buf.String(), nil
}

// Manager drives systemctl. The zero value is not usable; call NewManager.
type Manager struct {
	systemctl func(args ...string) ([]byte, error)
	unitPath  string
}

// NewManager returns a Manager that runs the real systemctl.
func NewManager() *Manager {
	return &Manager{
		systemctl: func(args ...string) ([]byte, error) {
			return exec.Command("systemctl", args...).CombinedOutput()
		},
		unitPath: UnitPath,
	}
}

// Supported reports whether systemd can be used on this host.
func Supported() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	_, err := exec.LookPath("systemctl")
	return err == nil
}

func (m *Manager) run(args ...string) error {
	out, err := m.systemctl(args...)
	if err != nil {
		return fmt.Errorf("systemctl %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Install writes the unit, then enables and starts it.
func (m *Manager) Install(u Unit) error {
	content, err := u.Render()
	if err != nil {
		return err
	}
	if err := os.WriteFile(m.unitPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write unit file: %w", err)
	}
	if err := m.run("daemon-reload"); err != nil {
		return err
	}
	return m.run("enable", "--now", Name)
}

// Uninstall stops and removes the unit. A unit that is not installed is not
// an error.
func (m *Manager) Uninstall() error {
	_ = m.run("disable", "--now", Name)
	if err := os.Remove(m.unitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove unit file: %w", err)
	}
	return m.run("daemon-reload")
}

// Status queries systemd for the unit state.
func (m *Manager) Status() (*Status, error) {
	status := &Status{}
	if _, err := os.Stat(m.unitPath); err == nil {
		status.Installed = true
	}

	out, err := m.systemctl("show", Name, "--property=ActiveState,SubState,UnitFileState")
	if err != nil {
		return nil, fmt.Errorf("systemctl show: %w", err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "ActiveState":
			status.ActiveState = value
			status.Running = value == "active"
		case "SubState":
			status.SubState = value
		case "UnitFileState":
			status.Enabled = value == "enabled"
		}
	}
	return status, nil
}
