// Package catalog holds the static table of installable apps.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/kliiq/kliiq/internal/installer"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Entry is one installable app. ID is the winget package identifier and the
// join key used by packs and selections; the other fields are display only.
type Entry struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Domain   string `yaml:"domain" json:"domain"`
	Category string `yaml:"-" json:"category"`
	Version  string `yaml:"version" json:"version"`
	Size     string `yaml:"size" json:"size"`
}

type group struct {
	Category string  `yaml:"category"`
	Apps     []Entry `yaml:"apps"`
}

// Catalog is an immutable, declaration-ordered set of entries.
type Catalog struct {
	entries    []Entry
	byID       map[string]int
	categories []string
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
)

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(bytes.NewReader(defaultCatalog))
		if err != nil {
			panic("invalid embedded catalog: " + err.Error())
		}
		defaultCat = c
	})
	return defaultCat
}

// Load parses a catalog from YAML. Ids must be unique valid winget ids and
// every entry needs a name.
func Load(r io.Reader) (*Catalog, error) {
	var groups []group
	if err := yaml.NewDecoder(r).Decode(&groups); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := &Catalog{byID: make(map[string]int)}
	for _, g := range groups {
		if g.Category == "" {
			return nil, errors.New("catalog group without category")
		}
		if len(g.Apps) > 0 {
			c.categories = append(c.categories, g.Category)
		}
		for _, e := range g.Apps {
			if err := installer.ValidateAppID(e.ID); err != nil {
				return nil, err
			}
			if e.Name == "" {
				return nil, fmt.Errorf("catalog entry %s has no name", e.ID)
			}
			if _, dup := c.byID[e.ID]; dup {
				return nil, fmt.Errorf("duplicate catalog id %s", e.ID)
			}
			e.Category = g.Category
			c.byID[e.ID] = len(c.entries)
			c.entries = append(c.entries, e)
		}
	}
	return c, nil
}

// Lookup returns the entry for id.
func (c *Catalog) Lookup(id string) (Entry, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Contains reports whether id is in the catalog.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// All returns every entry in declaration order.
func (c *Catalog) All() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Categories returns category names in declaration order.
func (c *Catalog) Categories() []string {
	out := make([]string, len(c.categories))
	copy(out, c.categories)
	return out
}

// ListByCategory returns the entries of a category in declaration order.
// Matching is case-insensitive; an unknown category yields an empty slice.
func (c *Catalog) ListByCategory(category string) []Entry {
	out := []Entry{}
	for _, e := range c.entries {
		if strings.EqualFold(e.Category, category) {
			out = append(out, e)
		}
	}
	return out
}

// Resolve turns a selection of ids into installer apps. Unknown ids are
// dropped silently, duplicates keep their first position.
func (c *Catalog) Resolve(ids []string) []installer.App {
	seen := make(map[string]bool, len(ids))
	apps := make([]installer.App, 0, len(ids))
	for _, id := range ids {
		e, ok := c.Lookup(id)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		apps = append(apps, installer.App{ID: e.ID, Name: e.Name})
	}
	return apps
}

// Search fuzzy-matches query against name, id and category, best match
// first. An empty query returns the whole catalog.
func (c *Catalog) Search(query string) []Entry {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.All()
	}
	matches := fuzzy.FindFrom(query, searchSource(c.entries))
	out := make([]Entry, 0, len(matches))
	for _, m := range matches {
		out = append(out, c.entries[m.Index])
	}
	return out
}

type searchSource []Entry

func (s searchSource) String(i int) string {
	return s[i].Name + " " + s[i].ID + " " + s[i].Category
}

func (s searchSource) Len() int {
	return len(s)
}
