package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kliiq/kliiq/internal/services"
)

func TestAuditService_LogAndGetLogs(t *testing.T) {
	svc := services.NewAuditService(setupTestDB(t))
	alice := freeAccount("alice")
	bob := freeAccount("bob")

	require.NoError(t, svc.LogAction(alice, "create", "pack", "p1", "10.0.0.1", "curl/8", map[string]interface{}{"name": "Work"}))
	require.NoError(t, svc.LogAction(alice, "delete", "pack", "p1", "10.0.0.1", "curl/8", nil))
	require.NoError(t, svc.LogAction(bob, "create", "pack", "p2", "10.0.0.2", "", nil))

	logs, err := svc.GetLogs(alice.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "delete", logs[0].Action, "newest first")
	assert.Equal(t, "create", logs[1].Action)
	assert.Equal(t, "alice@example.com", logs[1].Email)
	assert.JSONEq(t, `{"name":"Work"}`, logs[1].Details)

	page, err := svc.GetLogs(alice.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "create", page[0].Action)

	none, err := svc.GetLogs("nobody", 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
