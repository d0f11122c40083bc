package services

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kliiq/kliiq/internal/database"
	"github.com/kliiq/kliiq/internal/models"
	"github.com/kliiq/kliiq/internal/validation"
)

// MaxDeviceNameLength is the longest device name accepted, in characters.
const MaxDeviceNameLength = 80

var (
	// ErrDeviceNotFound indicates the device does not exist or belongs to another account.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrDeviceNameTaken indicates another device of the account already uses the name.
	ErrDeviceNameTaken = errors.New("device name already in use")
	// ErrInvalidDeviceName indicates an empty or overlong device name.
	ErrInvalidDeviceName = errors.New("device name must be 1-80 characters")
	// ErrHostRequired indicates an attempt to unset the host without naming a new one.
	ErrHostRequired = errors.New("make another device the host instead")
)

const deviceColumns = "id, user_id, device_key, name, platform, is_host, last_seen_at, created_at, updated_at"

// DeviceService manages the devices registered to an account.
type DeviceService struct {
	db     *database.DB
	events *EventService
}

// NewDeviceService creates a new DeviceService instance. events may be nil.
func NewDeviceService(db *database.DB, events *EventService) *DeviceService {
	return &DeviceService{db: db, events: events}
}

// Register upserts the calling device by (account, name) and makes it the
// host when the account has none yet.
func (s *DeviceService) Register(account *models.Account, req *models.RegisterDeviceRequest, userAgent string) (*models.Device, error) {
	name := req.Name
	if strings.TrimSpace(name) == "" {
		name = DeriveDeviceName(userAgent)
	}
	name, err := validation.CleanName(name, MaxDeviceNameLength)
	if err != nil {
		return nil, ErrInvalidDeviceName
	}
	platform := strings.TrimSpace(req.Platform)
	if platform == "" {
		platform = DerivePlatform(userAgent)
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(`
		INSERT INTO devices (id, user_id, device_key, name, platform, is_host, last_seen_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)
		ON CONFLICT(user_id, name) DO UPDATE SET
			device_key = excluded.device_key,
			platform = excluded.platform,
			last_seen_at = excluded.last_seen_at,
			updated_at = excluded.updated_at
	`, uuid.New().String(), account.ID, req.DeviceKey, name, platform, now, now, now)
	if err != nil {
		return nil, err
	}

	// Only succeeds while the account has no host. A concurrent registration
	// that wins the race trips the one-host index instead.
	_, err = s.db.Exec(`
		UPDATE devices SET is_host = 1, updated_at = ?
		WHERE user_id = ? AND name = ?
		AND NOT EXISTS (SELECT 1 FROM devices WHERE user_id = ? AND is_host = 1)
	`, now, account.ID, name, account.ID)
	if err != nil && !database.IsUniqueViolation(err) {
		return nil, err
	}

	device, err := scanDevice(s.db.QueryRow(
		"SELECT "+deviceColumns+" FROM devices WHERE user_id = ? AND name = ?",
		account.ID, name,
	))
	if err != nil {
		return nil, err
	}

	s.events.Publish(account.ID, Event{Type: EventDeviceUpdated, ResourceID: device.ID, Data: device})
	return device, nil
}

// ListDevices returns the account's devices, host first, then oldest first.
func (s *DeviceService) ListDevices(account *models.Account) ([]models.Device, error) {
	rows, err := s.db.Query(
		"SELECT "+deviceColumns+" FROM devices WHERE user_id = ? ORDER BY is_host DESC, created_at ASC, rowid ASC",
		account.ID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	devices := make([]models.Device, 0)
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *device)
	}
	return devices, rows.Err()
}

// GetDevice returns one of the account's devices.
func (s *DeviceService) GetDevice(account *models.Account, id string) (*models.Device, error) {
	return getDevice(s.db, account.ID, id)
}

// UpdateDevice renames a device and/or transfers the host role to it.
func (s *DeviceService) UpdateDevice(account *models.Account, id string, req *models.UpdateDeviceRequest) (*models.Device, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	device, err := getDevice(tx, account.ID, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	if req.Name != nil {
		name, err := validation.CleanName(*req.Name, MaxDeviceNameLength)
		if err != nil {
			return nil, ErrInvalidDeviceName
		}
		if name != device.Name {
			_, err := tx.Exec("UPDATE devices SET name = ?, updated_at = ? WHERE id = ?", name, now, id)
			if database.IsUniqueViolation(err) {
				return nil, ErrDeviceNameTaken
			}
			if err != nil {
				return nil, err
			}
		}
	}

	if req.IsHost != nil {
		switch {
		case *req.IsHost && !device.IsHost:
			if _, err := tx.Exec("UPDATE devices SET is_host = 0, updated_at = ? WHERE user_id = ? AND is_host = 1", now, account.ID); err != nil {
				return nil, err
			}
			if _, err := tx.Exec("UPDATE devices SET is_host = 1, updated_at = ? WHERE id = ?", now, id); err != nil {
				return nil, err
			}
		case !*req.IsHost && device.IsHost:
			return nil, ErrHostRequired
		}
	}

	device, err = getDevice(tx, account.ID, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.events.Publish(account.ID, Event{Type: EventDeviceUpdated, ResourceID: device.ID, Data: device})
	return device, nil
}

// DeleteDevice removes a device. Deleting the host promotes the oldest
// remaining device.
func (s *DeviceService) DeleteDevice(account *models.Account, id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	device, err := getDevice(tx, account.ID, id)
	if err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM devices WHERE id = ? AND user_id = ?", id, account.ID); err != nil {
		return err
	}

	if device.IsHost {
		_, err := tx.Exec(`
			UPDATE devices SET is_host = 1, updated_at = ?
			WHERE id = (SELECT id FROM devices WHERE user_id = ? ORDER BY created_at ASC, rowid ASC LIMIT 1)
		`, time.Now().UTC(), account.ID)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.events.Publish(account.ID, Event{Type: EventDeviceDeleted, ResourceID: id})
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func getDevice(q rowQuerier, userID, id string) (*models.Device, error) {
	device, err := scanDevice(q.QueryRow(
		"SELECT "+deviceColumns+" FROM devices WHERE id = ? AND user_id = ?",
		id, userID,
	))
	if err == sql.ErrNoRows {
		return nil, ErrDeviceNotFound
	}
	return device, err
}

func scanDevice(row rowScanner) (*models.Device, error) {
	var d models.Device
	err := row.Scan(&d.ID, &d.UserID, &d.DeviceKey, &d.Name, &d.Platform, &d.IsHost, &d.LastSeenAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
