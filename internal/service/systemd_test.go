package service

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeManager(t *testing.T, reply func(args []string) ([]byte, error)) (*Manager, *[][]string) {
	t.Helper()
	var calls [][]string
	return &Manager{
		systemctl: func(args ...string) ([]byte, error) {
			calls = append(calls, args)
			return reply(args)
		},
		unitPath: filepath.Join(t.TempDir(), "kliiq-server.service"),
	}, &calls
}

func TestUnitRender(t *testing.T) {
	content, err := Unit{
		ExecPath:   "/usr/local/bin/kliiq-server",
		ConfigPath: "/etc/kliiq/config.yaml",
		User:       "kliiq",
		WorkingDir: "/var/lib/kliiq",
	}.Render()
	require.NoError(t, err)

	assert.Contains(t, content, "ExecStart=/usr/local/bin/kliiq-server -config /etc/kliiq/config.yaml")
	assert.Contains(t, content, "User=kliiq")
	assert.Contains(t, content, "ReadWritePaths=/var/lib/kliiq")
	assert.Contains(t, content, "Environment=APP_ENV=production")
}

func TestManagerInstall(t *testing.T) {
	m, calls := fakeManager(t, func([]string) ([]byte, error) { return nil, nil })

	require.NoError(t, m.Install(DefaultUnit()))

	data, err := os.ReadFile(m.unitPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[Service]")
	assert.Equal(t, [][]string{{"daemon-reload"}, {"enable", "--now", Name}}, *calls)
}

func TestManagerInstallSystemctlFails(t *testing.T) {
	m, _ := fakeManager(t, func([]string) ([]byte, error) {
		return []byte("Access denied"), errors.New("exit status 1")
	})

	err := m.Install(DefaultUnit())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Access denied")
}

func TestManagerUninstallMissingUnit(t *testing.T) {
	m, calls := fakeManager(t, func(args []string) ([]byte, error) {
		if args[0] == "disable" {
			return nil, errors.New("not loaded")
		}
		return nil, nil
	})

	require.NoError(t, m.Uninstall())
	assert.Len(t, *calls, 2)
}

func TestManagerStatus(t *testing.T) {
	m, _ := fakeManager(t, func([]string) ([]byte, error) {
		return []byte(strings.Join([]string{
			"ActiveState=active",
			"SubState=running",
			"UnitFileState=enabled",
		}, "\n")), nil
	})
	require.NoError(t, os.WriteFile(m.unitPath, []byte("x"), 0o644))

	status, err := m.Status()
	require.NoError(t, err)
	assert.Equal(t, &Status{
		ActiveState: "active",
		SubState:    "running",
		Installed:   true,
		Enabled:     true,
		Running:     true,
	}, status)
}
