package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kliiq/kliiq/internal/handlers"
	"github.com/kliiq/kliiq/internal/upgrade"
)

func TestVersionHandler_CheckUpdate(t *testing.T) {
	gh := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tag_name":"v9.9.9","name":"Kliiq 9.9.9","html_url":"https://example/release"}`))
	}))
	defer gh.Close()

	handler := handlers.NewVersionHandler(upgrade.NewChecker(gh.URL))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/version/check", nil)

	handler.CheckUpdate(c)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if response["latest"] != "v9.9.9" {
		t.Errorf("expected latest v9.9.9, got %v", response["latest"])
	}
	if response["update_available"] != true {
		t.Error("expected update to be available for a dev build")
	}
}

func TestVersionHandler_CheckUpdateFailure(t *testing.T) {
	gh := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gh.Close()

	handler := handlers.NewVersionHandler(upgrade.NewChecker(gh.URL))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/version/check", nil)

	handler.CheckUpdate(c)

	// Should always return 200 even if check fails
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if response["current"] == nil {
		t.Error("expected current version in response")
	}
	if response["update_available"] != false {
		t.Error("expected update_available false on failure")
	}
}
