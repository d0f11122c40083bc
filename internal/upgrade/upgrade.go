// Package upgrade checks for and installs newer releases of the binaries.
package upgrade

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/kliiq/kliiq/internal/version"
)

const (
	githubRepo = "kliiq/kliiq"
	githubAPI  = "https://api.github.com"
)

// ErrNoAsset indicates the release has no build for this platform.
var ErrNoAsset = errors.New("no release asset for this platform")

// Release is the subset of a GitHub release the upgrader needs.
type Release struct {
	TagName string  `json:"tag_name"`
	Name    string  `json:"name"`
	HTMLURL string  `json:"html_url"`
	Assets  []Asset `json:"assets"`
}

// Asset is a downloadable file attached to a release.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// Checker queries the release feed.
type Checker struct {
	client *resty.Client
	repo   string
}

// NewChecker returns a Checker for the project's GitHub releases. An empty
// baseURL uses the public GitHub API.
func NewChecker(baseURL string) *Checker {
	if baseURL == "" {
		baseURL = githubAPI
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("User-Agent", "kliiq/"+version.Version)

	return &Checker{client: client, repo: githubRepo}
}

// Latest returns the newest published release.
func (c *Checker) Latest(ctx context.Context) (*Release, error) {
	var release Release
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&release).
		SetPathParam("repo", c.repo).
		Get("/repos/{repo}/releases/latest")
	if err != nil {
		return nil, fmt.Errorf("failed to check for updates: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to check for updates: HTTP %d", resp.StatusCode())
	}
	if release.TagName == "" {
		return nil, errors.New("failed to check for updates: release has no tag")
	}
	return &release, nil
}

// Download streams url into a temporary file next to the running binary and
// returns its path. progress may be nil.
func (c *Checker) Download(ctx context.Context, url string, progress func(downloaded, total int64)) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return "", fmt.Errorf("failed to download: %w", err)
	}
	body := resp.RawBody()
	defer func() { _ = body.Close() }()

	if resp.IsError() {
		return "", fmt.Errorf("failed to download: HTTP %d", resp.StatusCode())
	}

	tmpFile, err := createTempFile()
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = tmpFile.Close() }()

	var reader io.Reader = body
	if progress != nil {
		reader = &progressReader{r: body, total: resp.RawResponse.ContentLength, fn: progress}
	}
	if _, err := io.Copy(tmpFile, reader); err != nil {
		_ = os.Remove(tmpFile.Name())
		return "", fmt.Errorf("failed to download: %w", err)
	}

	return tmpFile.Name(), nil
}

type progressReader struct {
	r          io.Reader
	fn         func(downloaded, total int64)
	downloaded int64
	total      int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.downloaded += int64(n)
		p.fn(p.downloaded, p.total)
	}
	return n, err
}

// createTempFile prefers the executable's directory so the final rename
// stays on one filesystem.
func createTempFile() (*os.File, error) {
	if execPath, err := os.Executable(); err == nil {
		if f, err := os.CreateTemp(filepath.Dir(execPath), ".kliiq-upgrade-*"); err == nil {
			return f, nil
		}
	}
	return os.CreateTemp("", "kliiq-upgrade-*")
}

// NeedsUpgrade reports whether latest is newer than current. Development
// builds always need an upgrade.
func NeedsUpgrade(current, latest string) bool {
	current = strings.TrimPrefix(current, "v")
	latest = strings.TrimPrefix(latest, "v")

	if current == "dev" || strings.Contains(current, "-") {
		return true
	}

	cur, okCur := parseVersion(current)
	lat, okLat := parseVersion(latest)
	if !okCur || !okLat {
		return current != latest
	}
	for i := range cur {
		if lat[i] != cur[i] {
			return lat[i] > cur[i]
		}
	}
	return false
}

func parseVersion(v string) ([3]int, bool) {
	var out [3]int
	parts := strings.Split(v, ".")
	if len(parts) == 0 || len(parts) > 3 {
		return out, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return out, false
		}
		out[i] = n
	}
	return out, true
}

// AssetName returns the release asset name of binary for this platform.
func AssetName(binary string) string {
	name := fmt.Sprintf("%s-%s-%s", binary, runtime.GOOS, runtime.GOARCH)
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return name
}

// FindAssetURL returns the download URL of binary for this platform.
func FindAssetURL(release *Release, binary string) (string, error) {
	expected := AssetName(binary)
	for _, asset := range release.Assets {
		if asset.Name == expected {
			return asset.BrowserDownloadURL, nil
		}
	}
	return "", fmt.Errorf("%w: %s/%s", ErrNoAsset, runtime.GOOS, runtime.GOARCH)
}

// Install replaces the current binary with the one at tmpPath.
func Install(tmpPath string) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("failed to resolve executable path: %w", err)
	}

	backupPath := execPath + ".backup"
	if err := os.Rename(execPath, backupPath); err != nil {
		return fmt.Errorf("failed to backup current binary: %w", err)
	}

	if err := os.Rename(tmpPath, execPath); err != nil {
		_ = os.Rename(backupPath, execPath)
		return fmt.Errorf("failed to install new binary: %w", err)
	}

	if err := os.Chmod(execPath, 0755); err != nil {
		_ = os.Rename(backupPath, execPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	_ = os.Remove(backupPath)
	return nil
}

// Run checks for a newer release of binary and installs it, reporting to w.
func (c *Checker) Run(ctx context.Context, w io.Writer, binary string, force bool) error {
	fmt.Fprintf(w, "Current version: %s\n", version.Version)
	fmt.Fprintln(w, "Checking for updates...")

	release, err := c.Latest(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Latest version: %s\n", release.TagName)

	if !force && !NeedsUpgrade(version.Version, release.TagName) {
		fmt.Fprintln(w, "You are already running the latest version.")
		return nil
	}

	assetURL, err := FindAssetURL(release, binary)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Downloading %s...\n", AssetName(binary))
	tmpPath, err := c.Download(ctx, assetURL, func(downloaded, total int64) {
		if total > 0 {
			fmt.Fprintf(w, "\rDownloading: %.1f%%", float64(downloaded)/float64(total)*100)
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(w)

	if err := Install(tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	fmt.Fprintf(w, "Successfully upgraded to %s!\n", release.TagName)
	return nil
}
