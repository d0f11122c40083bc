package services_test

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kliiq/kliiq/internal/database"
	"github.com/kliiq/kliiq/internal/models"
	"github.com/kliiq/kliiq/internal/services"
)

const windowsChrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

func boolPtr(b bool) *bool {
	return &b
}

func strPtr(s string) *string {
	return &s
}

func TestDeviceService_RegisterFirstDeviceBecomesHost(t *testing.T) {
	svc := services.NewDeviceService(setupTestDB(t), nil)
	account := freeAccount("user-1")

	first, err := svc.Register(account, &models.RegisterDeviceRequest{DeviceKey: "key-1"}, windowsChrome)
	require.NoError(t, err)
	assert.Equal(t, "Windows - Chrome", first.Name)
	assert.Equal(t, "Windows", first.Platform)
	assert.True(t, first.IsHost)

	second, err := svc.Register(account, &models.RegisterDeviceRequest{DeviceKey: "key-2", Name: "Laptop"}, windowsChrome)
	require.NoError(t, err)
	assert.Equal(t, "Laptop", second.Name)
	assert.False(t, second.IsHost)
}

func TestDeviceService_RegisterUpsertsByName(t *testing.T) {
	svc := services.NewDeviceService(setupTestDB(t), nil)
	account := freeAccount("user-1")

	first, err := svc.Register(account, &models.RegisterDeviceRequest{DeviceKey: "key-1", Name: "Desk"}, "")
	require.NoError(t, err)

	again, err := svc.Register(account, &models.RegisterDeviceRequest{DeviceKey: "key-2", Name: "Desk", Platform: "Windows"}, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "key-2", again.DeviceKey)
	assert.Equal(t, "Windows", again.Platform)
	assert.True(t, again.IsHost)

	devices, err := svc.ListDevices(account)
	require.NoError(t, err)
	assert.Len(t, devices, 1)

	// same name under another account is a different device
	other, err := svc.Register(freeAccount("user-2"), &models.RegisterDeviceRequest{DeviceKey: "key-3", Name: "Desk"}, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
	assert.True(t, other.IsHost)
}

func TestDeviceService_ConcurrentRegistrationYieldsOneHost(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "kliiq.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	svc := services.NewDeviceService(db, nil)
	account := freeAccount("user-1")

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Register(account, &models.RegisterDeviceRequest{
				DeviceKey: fmt.Sprintf("key-%d", i),
				Name:      fmt.Sprintf("Device %d", i),
			}, "")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	devices, err := svc.ListDevices(account)
	require.NoError(t, err)
	require.Len(t, devices, n)

	hosts := 0
	for _, d := range devices {
		if d.IsHost {
			hosts++
		}
	}
	assert.Equal(t, 1, hosts)
	assert.True(t, devices[0].IsHost, "host is listed first")
}

func TestDeviceService_TransferHost(t *testing.T) {
	svc := services.NewDeviceService(setupTestDB(t), nil)
	account := freeAccount("user-1")

	desk, err := svc.Register(account, &models.RegisterDeviceRequest{DeviceKey: "k1", Name: "Desk"}, "")
	require.NoError(t, err)
	laptop, err := svc.Register(account, &models.RegisterDeviceRequest{DeviceKey: "k2", Name: "Laptop"}, "")
	require.NoError(t, err)

	laptop, err = svc.UpdateDevice(account, laptop.ID, &models.UpdateDeviceRequest{IsHost: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, laptop.IsHost)

	desk, err = svc.GetDevice(account, desk.ID)
	require.NoError(t, err)
	assert.False(t, desk.IsHost)

	_, err = svc.UpdateDevice(account, laptop.ID, &models.UpdateDeviceRequest{IsHost: boolPtr(false)})
	assert.ErrorIs(t, err, services.ErrHostRequired)

	// setting host on the current host is a no-op
	laptop, err = svc.UpdateDevice(account, laptop.ID, &models.UpdateDeviceRequest{IsHost: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, laptop.IsHost)
}

func TestDeviceService_Rename(t *testing.T) {
	svc := services.NewDeviceService(setupTestDB(t), nil)
	account := freeAccount("user-1")

	desk, err := svc.Register(account, &models.RegisterDeviceRequest{DeviceKey: "k1", Name: "Desk"}, "")
	require.NoError(t, err)
	_, err = svc.Register(account, &models.RegisterDeviceRequest{DeviceKey: "k2", Name: "Laptop"}, "")
	require.NoError(t, err)

	renamed, err := svc.UpdateDevice(account, desk.ID, &models.UpdateDeviceRequest{Name: strPtr(" Office ")})
	require.NoError(t, err)
	assert.Equal(t, "Office", renamed.Name)

	_, err = svc.UpdateDevice(account, desk.ID, &models.UpdateDeviceRequest{Name: strPtr("Laptop")})
	assert.ErrorIs(t, err, services.ErrDeviceNameTaken)

	_, err = svc.UpdateDevice(account, desk.ID, &models.UpdateDeviceRequest{Name: strPtr("  ")})
	assert.ErrorIs(t, err, services.ErrInvalidDeviceName)

	_, err = svc.UpdateDevice(freeAccount("intruder"), desk.ID, &models.UpdateDeviceRequest{Name: strPtr("Mine")})
	assert.ErrorIs(t, err, services.ErrDeviceNotFound)
}

func TestDeviceService_DeleteHostPromotesOldest(t *testing.T) {
	events := services.NewEventService()
	svc := services.NewDeviceService(setupTestDB(t), events)
	account := freeAccount("user-1")

	host, err := svc.Register(account, &models.RegisterDeviceRequest{DeviceKey: "k1", Name: "First"}, "")
	require.NoError(t, err)
	second, err := svc.Register(account, &models.RegisterDeviceRequest{DeviceKey: "k2", Name: "Second"}, "")
	require.NoError(t, err)
	_, err = svc.Register(account, &models.RegisterDeviceRequest{DeviceKey: "k3", Name: "Third"}, "")
	require.NoError(t, err)

	stream := events.Subscribe(account.ID)
	defer events.Unsubscribe(account.ID, stream)

	require.NoError(t, svc.DeleteDevice(account, host.ID))

	ev := <-stream
	assert.Equal(t, services.EventDeviceDeleted, ev.Type)
	assert.Equal(t, host.ID, ev.ResourceID)

	devices, err := svc.ListDevices(account)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, second.ID, devices[0].ID)
	assert.True(t, devices[0].IsHost)
	assert.False(t, devices[1].IsHost)

	assert.ErrorIs(t, svc.DeleteDevice(account, host.ID), services.ErrDeviceNotFound)
}
