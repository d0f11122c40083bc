package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kliiq/kliiq/internal/catalog"
)

// CatalogHandler serves the static app catalog.
type CatalogHandler struct {
	catalog *catalog.Catalog
}

// NewCatalogHandler creates a new CatalogHandler instance.
func NewCatalogHandler(cat *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: cat}
}

// List returns catalog entries, optionally fuzzy-searched by q and filtered
// by category.
// GET /api/catalog?q=&category=
func (h *CatalogHandler) List(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	category := strings.TrimSpace(c.Query("category"))

	var entries []catalog.Entry
	switch {
	case query != "":
		entries = h.catalog.Search(query)
		if category != "" {
			filtered := make([]catalog.Entry, 0, len(entries))
			for _, e := range entries {
				if strings.EqualFold(e.Category, category) {
					filtered = append(filtered, e)
				}
			}
			entries = filtered
		}
	case category != "":
		entries = h.catalog.ListByCategory(category)
	default:
		entries = h.catalog.All()
	}

	c.JSON(http.StatusOK, gin.H{
		"apps":  entries,
		"total": len(entries),
	})
}

// Categories returns category names in display order.
// GET /api/catalog/categories
func (h *CatalogHandler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Categories())
}

// Get returns a single entry.
// GET /api/catalog/:id
func (h *CatalogHandler) Get(c *gin.Context) {
	entry, ok := h.catalog.Lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "app not found"})
		return
	}
	c.JSON(http.StatusOK, entry)
}
