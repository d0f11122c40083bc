package handlers_test

import (
	"encoding/json"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kliiq/kliiq/internal/catalog"
	"github.com/kliiq/kliiq/internal/config"
	"github.com/kliiq/kliiq/internal/database"
	"github.com/kliiq/kliiq/internal/handlers"
	"github.com/kliiq/kliiq/internal/installer"
	"github.com/kliiq/kliiq/internal/middleware"
	"github.com/kliiq/kliiq/internal/models"
	"github.com/kliiq/kliiq/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func withAccount(account *models.Account) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.AccountContextKey, account)
		c.Next()
	}
}

func setupDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInstallerHandler_Attachment(t *testing.T) {
	h := handlers.NewInstallerHandler(catalog.Default(), hclog.NewNullLogger())
	r := gin.New()
	r.POST("/api/installer", h.Generate)

	w := performRequest(r, http.MethodPost, "/api/installer",
		`{"apps":[{"id":"Google.Chrome","name":"Chrome"},{"id":"Git.Git","name":"Git"}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, installer.ContentType, w.Header().Get("Content-Type"))
	disposition, params, err := mime.ParseMediaType(w.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, "Kliiq Chrome & Git Installer.cmd", params["filename"])
	assert.True(t, strings.HasPrefix(w.Body.String(), "<# :"))
	assert.Contains(t, w.Body.String(), "\r\n")
}

func TestInstallerHandler_FromCatalogIDsAsJSON(t *testing.T) {
	h := handlers.NewInstallerHandler(catalog.Default(), hclog.NewNullLogger())
	r := gin.New()
	r.POST("/api/installer", h.Generate)

	w := performRequest(r, http.MethodPost, "/api/installer",
		`{"app_ids":["VideoLAN.VLC","Unknown.App","VideoLAN.VLC"],"format":"json"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var script installer.Script
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &script))
	assert.Equal(t, "Kliiq VLC Installer.cmd", script.Filename)
	assert.Equal(t, []installer.App{{ID: "VideoLAN.VLC", Name: "VLC"}}, script.Apps)
}

func TestInstallerHandler_Rejects(t *testing.T) {
	h := handlers.NewInstallerHandler(catalog.Default(), hclog.NewNullLogger())
	r := gin.New()
	r.POST("/api/installer", h.Generate)

	tests := []struct {
		name string
		body string
	}{
		{"empty selection", `{"apps":[]}`},
		{"only unknown ids", `{"app_ids":["Nope.Nope"]}`},
		{"invalid id", `{"apps":[{"id":"x & calc","name":"Calc"}]}`},
		{"malformed json", `{"apps":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(r, http.MethodPost, "/api/installer", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestCatalogHandler(t *testing.T) {
	h := handlers.NewCatalogHandler(catalog.Default())
	r := gin.New()
	r.GET("/api/catalog", h.List)
	r.GET("/api/catalog/categories", h.Categories)
	r.GET("/api/catalog/:id", h.Get)

	var list struct {
		Apps  []catalog.Entry `json:"apps"`
		Total int             `json:"total"`
	}

	w := performRequest(r, http.MethodGet, "/api/catalog", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, catalog.Default().Len(), list.Total)

	w = performRequest(r, http.MethodGet, "/api/catalog?category=browsers", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.NotEmpty(t, list.Apps)
	for _, e := range list.Apps {
		assert.Equal(t, "Browsers", e.Category)
	}

	w = performRequest(r, http.MethodGet, "/api/catalog?q=chrome", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.NotEmpty(t, list.Apps)
	assert.Equal(t, "Google.Chrome", list.Apps[0].ID)

	w = performRequest(r, http.MethodGet, "/api/catalog/categories", "")
	var categories []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &categories))
	assert.Equal(t, catalog.Default().Categories(), categories)

	w = performRequest(r, http.MethodGet, "/api/catalog/Git.Git", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Git"`)

	w = performRequest(r, http.MethodGet, "/api/catalog/Missing.App", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPackHandler_StatusMapping(t *testing.T) {
	db := setupDB(t)
	var limits config.LimitsConfig
	limits.MaxAppsPerPack = 2
	limits.FreeMaxPacks = 1
	limits.FreeMaxPackDeletes = 1

	packs := services.NewPackService(db, catalog.Default(), limits, nil)
	h := handlers.NewPackHandler(packs, services.NewAuditService(db), hclog.NewNullLogger())

	r := gin.New()
	r.Use(withAccount(&models.Account{ID: "user-1", Plan: config.PlanFree}))
	r.POST("/api/packs", h.Create)
	r.GET("/api/packs/:id", h.Get)
	r.POST("/api/packs/:id/apps", h.AddApp)
	r.DELETE("/api/packs/:id", h.Delete)

	w := performRequest(r, http.MethodPost, "/api/packs", `{"name":"First","app_id":"Git.Git"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var pack models.Pack
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pack))

	w = performRequest(r, http.MethodPost, "/api/packs", `{"name":"Second"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = performRequest(r, http.MethodPost, "/api/packs", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(r, http.MethodPost, "/api/packs/"+pack.ID+"/apps", `{"app_id":"Google.Chrome"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	w = performRequest(r, http.MethodPost, "/api/packs/"+pack.ID+"/apps", `{"app_id":"VideoLAN.VLC"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = performRequest(r, http.MethodPost, "/api/packs/"+pack.ID+"/apps", `{"app_id":"Not.Real"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(r, http.MethodGet, "/api/packs/not-a-uuid", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = performRequest(r, http.MethodGet, "/api/packs/6a1c1a53-8f2e-4b9f-9a55-0a6e7f3f7d10", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = performRequest(r, http.MethodDelete, "/api/packs/"+pack.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = performRequest(r, http.MethodPost, "/api/packs", `{"name":"Third"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pack))
	w = performRequest(r, http.MethodDelete, "/api/packs/"+pack.ID, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	logs, err := services.NewAuditService(db).GetLogs("user-1", 10, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, logs)
}

func TestPackHandler_DatabaseErrorsAreNotLeaked(t *testing.T) {
	db := setupDB(t)
	packs := services.NewPackService(db, catalog.Default(), config.LimitsConfig{MaxAppsPerPack: 10}, nil)
	h := handlers.NewPackHandler(packs, nil, hclog.NewNullLogger())

	r := gin.New()
	r.Use(withAccount(&models.Account{ID: "user-1", Plan: config.PlanPro}))
	r.GET("/api/packs", h.List)

	require.NoError(t, db.Close())

	w := performRequest(r, http.MethodGet, "/api/packs", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "sql")
}

func TestDeviceHandler_RegisterDerivesName(t *testing.T) {
	db := setupDB(t)
	h := handlers.NewDeviceHandler(services.NewDeviceService(db, nil), nil, hclog.NewNullLogger())

	r := gin.New()
	r.Use(withAccount(&models.Account{ID: "user-1", Plan: config.PlanFree}))
	r.POST("/api/devices", h.Register)
	r.PATCH("/api/devices/:id", h.Update)
	r.GET("/api/devices", h.List)

	req := httptest.NewRequest(http.MethodPost, "/api/devices", strings.NewReader(`{"device_key":"abc"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var device models.Device
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &device))
	assert.Equal(t, "Linux - Firefox", device.Name)
	assert.True(t, device.IsHost)

	w = performRequest(r, http.MethodPatch, "/api/devices/"+device.ID, `{"is_host":false}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = performRequest(r, http.MethodPost, "/api/devices", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeviceHandler_Get(t *testing.T) {
	db := setupDB(t)
	svc := services.NewDeviceService(db, nil)
	h := handlers.NewDeviceHandler(svc, nil, hclog.NewNullLogger())

	owner := &models.Account{ID: "user-1", Plan: config.PlanFree}
	device, err := svc.Register(owner, &models.RegisterDeviceRequest{DeviceKey: "k1", Name: "Desk"}, "")
	require.NoError(t, err)

	get := func(account *models.Account, id string) *httptest.ResponseRecorder {
		r := gin.New()
		r.Use(withAccount(account))
		r.GET("/api/devices/:id", h.Get)
		return performRequest(r, http.MethodGet, "/api/devices/"+id, "")
	}

	w := get(owner, device.ID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got models.Device
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Desk", got.Name)
	assert.True(t, got.IsHost)

	// other accounts and malformed ids both look like a missing device
	assert.Equal(t, http.StatusNotFound, get(&models.Account{ID: "user-2"}, device.ID).Code)
	assert.Equal(t, http.StatusNotFound, get(owner, "not-a-uuid").Code)
}

func TestMeHandler_CountsEventStreams(t *testing.T) {
	db := setupDB(t)
	events := services.NewEventService()
	var limits config.LimitsConfig
	limits.FreeMaxPacks = 3
	packs := services.NewPackService(db, catalog.Default(), limits, events)
	h := handlers.NewMeHandler(packs, events, hclog.NewNullLogger())

	r := gin.New()
	r.Use(withAccount(&models.Account{ID: "user-1", Plan: config.PlanFree}))
	r.GET("/api/me", h.Get)

	stream := events.Subscribe("user-1")
	defer events.Unsubscribe("user-1", stream)

	w := performRequest(r, http.MethodGet, "/api/me", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var me struct {
		EventStreams int `json:"event_streams"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, 1, me.EventStreams)
}

func TestRequireAccount(t *testing.T) {
	h := handlers.NewMeHandler(nil, nil, hclog.NewNullLogger())
	r := gin.New()
	r.GET("/api/me", h.Get)

	w := performRequest(r, http.MethodGet, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
