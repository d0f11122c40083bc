// Package installer renders self-elevating Windows installer scripts that
// install a selection of apps with winget, one after another.
package installer

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	// FileExtension is the extension of generated installers.
	FileExtension = ".cmd"
	// ContentType is the MIME type used when delivering an installer.
	ContentType = "application/octet-stream"
)

var (
	// ErrEmptySelection indicates there is nothing to install.
	ErrEmptySelection = errors.New("no apps selected")
	// ErrInvalidAppID indicates an id that is not a winget package identifier.
	ErrInvalidAppID = errors.New("invalid app id")
)

var appIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]{0,127}$`)

// App is one entry of a selection: the winget package id and its display name.
type App struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Script is a rendered installer ready for delivery.
type Script struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Apps     []App  `json:"apps"`
}

var templates = template.Must(
	template.New("").Funcs(template.FuncMap{
		"psquote": psQuote,
		"inc":     func(i int) int { return i + 1 },
	}).ParseFS(templateFS, "templates/*.tmpl"),
)

// ValidateAppID reports whether id looks like a winget package identifier.
func ValidateAppID(id string) error {
	if !appIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidAppID, id)
	}
	return nil
}

// Normalize trims the selection, strips control characters from names, drops duplicate ids keeping the first
// occurrence and falls back to the id when a name is blank. Order is kept.
func Normalize(apps []App) ([]App, error) {
	seen := make(map[string]bool, len(apps))
	out := make([]App, 0, len(apps))
	for _, app := range apps {
		app.ID = strings.TrimSpace(app.ID)
		app.Name = strings.TrimSpace(stripControl(app.Name))
		if err := ValidateAppID(app.ID); err != nil {
			return nil, err
		}
		if seen[app.ID] {
			continue
		}
		seen[app.ID] = true
		if app.Name == "" {
			app.Name = app.ID
		}
		out = append(out, app)
	}
	return out, nil
}

// Generate renders the installer for apps. The PowerShell body is embedded as
// base64 of UTF-16LE text and decoded by PowerShell at run time, so display
// names never reach cmd.exe parsing.
func Generate(apps []App) (*Script, error) {
	apps, err := Normalize(apps)
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, ErrEmptySelection
	}

	body, err := RenderPayload(apps)
	if err != nil {
		return nil, err
	}
	payload, err := EncodeCommand(body)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = templates.ExecuteTemplate(&buf, "installer.cmd.tmpl", struct {
		Count   int
		Payload string
	}{len(apps), payload})
	if err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}

	return &Script{
		Filename: Filename(apps),
		Content:  toCRLF(buf.String()),
		Apps:     apps,
	}, nil
}

// RenderPayload renders the PowerShell body that runs one winget install per
// app, in order. apps must already be normalized.
func RenderPayload(apps []App) (string, error) {
	var buf bytes.Buffer
	err := templates.ExecuteTemplate(&buf, "payload.ps1.tmpl", struct {
		Apps  []App
		Count int
	}{apps, len(apps)})
	if err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return toCRLF(buf.String()), nil
}

// Filename names the installer after the first one or two apps.
func Filename(apps []App) string {
	var label string
	switch len(apps) {
	case 0:
		label = "Kliiq Installer"
	case 1:
		label = fmt.Sprintf("Kliiq %s Installer", fileSafe(apps[0].Name))
	case 2:
		label = fmt.Sprintf("Kliiq %s & %s Installer", fileSafe(apps[0].Name), fileSafe(apps[1].Name))
	default:
		label = "Kliiq Custom Installer"
	}
	return label + FileExtension
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// fileSafe strips characters Windows rejects in file names.
func fileSafe(name string) string {
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || strings.ContainsRune(`<>:"/\|?*`, r) {
			return -1
		}
		return r
	}, name)
	name = strings.Trim(name, " .")
	if name == "" {
		return "App"
	}
	return name
}

// psQuote renders s as a PowerShell single-quoted string. PowerShell also
// treats the typographic single quotes as delimiters, so those are doubled too.
func psQuote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'', '‘', '’', '‚', '‛':
			b.WriteRune(r)
		}
		b.WriteRune(r)
	}
	b.WriteByte('\'')
	return b.String()
}

func toCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
