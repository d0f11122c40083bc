package services_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kliiq/kliiq/internal/database"
	"github.com/kliiq/kliiq/internal/models"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func freeAccount(id string) *models.Account {
	return &models.Account{ID: id, Email: id + "@example.com", Plan: "free"}
}

func proAccount(id string) *models.Account {
	return &models.Account{ID: id, Email: id + "@example.com", Plan: "pro"}
}
