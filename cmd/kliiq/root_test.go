package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kliiq/kliiq/internal/client"
	"github.com/kliiq/kliiq/internal/config"
	"github.com/kliiq/kliiq/internal/installer"
	"github.com/kliiq/kliiq/internal/models"
)

func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags puts package-level flag vars back to their defaults so tests
// don't leak state into each other.
func resetFlags(t *testing.T) {
	t.Helper()
	statePath = filepath.Join(t.TempDir(), "state.json")
	catalogCategory = ""
	generateApps = nil
	generateOutput = "."
	packsCreateApp = ""
}

func TestVersionCommand(t *testing.T) {
	resetFlags(t)
	output, err := executeCommand("version")
	require.NoError(t, err)
	assert.Contains(t, output, "kliiq")
}

func TestHelpCommand(t *testing.T) {
	resetFlags(t)
	output, err := executeCommand()
	require.NoError(t, err)
	for _, sub := range []string{"catalog", "generate", "packs", "devices"} {
		assert.Contains(t, output, sub)
	}
}

func TestCatalogSearch(t *testing.T) {
	resetFlags(t)
	output, err := executeCommand("catalog", "chrome")
	require.NoError(t, err)
	assert.Contains(t, output, "Google.Chrome")
}

func TestCatalogCategory(t *testing.T) {
	resetFlags(t)
	output, err := executeCommand("catalog", "--category", "development")
	require.NoError(t, err)
	assert.Contains(t, output, "Git.Git")
	assert.NotContains(t, output, "Google.Chrome")
}

func TestCatalogCategories(t *testing.T) {
	resetFlags(t)
	output, err := executeCommand("catalog", "categories")
	require.NoError(t, err)
	assert.Contains(t, output, "Browsers")
}

func TestGenerateWritesInstaller(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()

	output, err := executeCommand("generate", "Google.Chrome", "Git.Git", "-o", dir)
	require.NoError(t, err)
	assert.Contains(t, output, "2 apps")

	data, err := os.ReadFile(filepath.Join(dir, "Kliiq Chrome & Git Installer.cmd"))
	require.NoError(t, err)
	_, rest, ok := strings.Cut(string(data), "$payload = '")
	require.True(t, ok)
	encoded, _, _ := strings.Cut(rest, "'")
	body, err := installer.DecodeCommand(encoded)
	require.NoError(t, err)
	chrome, git := strings.Index(body, "Google.Chrome"), strings.Index(body, "Git.Git")
	assert.True(t, chrome >= 0 && git > chrome, "apps install in selection order")

	store := client.NewStore(statePath)
	require.NoError(t, store.Load())
	require.Len(t, store.State.Activity, 1)
	assert.Equal(t, "installer.generate", store.State.Activity[0].Action)
}

func TestGenerateUnknownApp(t *testing.T) {
	resetFlags(t)
	_, err := executeCommand("generate", "Not.AnApp", "-o", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown app")
}

func TestGenerateEmptySelection(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()

	_, err := executeCommand("generate", "-o", dir)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no file is written for an empty selection")
}

func TestPacksCreateOverFreeLimit(t *testing.T) {
	resetFlags(t)

	var writes, requests atomic.Int32
	packs := make([]models.Pack, 3)
	for i := range packs {
		packs[i] = models.Pack{ID: fmt.Sprintf("pack-%d", i), Name: fmt.Sprintf("Pack %d", i), AppIDs: []string{}}
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if r.Method != http.MethodGet {
			writes.Add(1)
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "pack limit reached for your plan"})
			return
		}
		switch r.URL.Path {
		case "/api/me":
			_ = json.NewEncoder(w).Encode(client.Me{
				Account: models.Account{ID: "user-1", Plan: config.PlanFree},
				Usage: client.Usage{
					Plan:   config.PlanFree,
					Limits: config.PlanLimits{MaxPacks: 3, MaxPackDeletes: 3, MaxAppsPerPack: 10},
					Packs:  3,
				},
			})
		case "/api/packs":
			_ = json.NewEncoder(w).Encode(packs)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	t.Setenv("KLIIQ_API_URL", srv.URL)
	t.Setenv("KLIIQ_TOKEN", "token-1")

	output, err := executeCommand("packs", "list")
	require.NoError(t, err)
	assert.Contains(t, output, "Pack 2")
	assert.Contains(t, output, "3/3 packs")

	// the list above cached the account state, so the cap is checked offline
	before := requests.Load()
	_, err = executeCommand("packs", "create", "Fourth")
	assert.ErrorIs(t, err, client.ErrPackLimit)
	assert.Equal(t, int32(0), writes.Load())
	assert.Equal(t, before, requests.Load(), "no request of any kind was sent")
}

func TestPacksNeedToken(t *testing.T) {
	resetFlags(t)
	t.Setenv("KLIIQ_API_URL", "http://127.0.0.1:1")
	t.Setenv("KLIIQ_TOKEN", "")

	_, err := executeCommand("packs", "list")
	assert.ErrorIs(t, err, client.ErrNoToken)
}
