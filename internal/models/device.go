package models

import "time"

// Device is a client install registered to an account. Exactly one device per
// account may be the host.
type Device struct {
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	DeviceKey  string    `json:"device_key"`
	Name       string    `json:"name"`
	Platform   string    `json:"platform"`
	IsHost     bool      `json:"is_host"`
}

// RegisterDeviceRequest upserts the calling device. Name is derived from the
// User-Agent when empty.
type RegisterDeviceRequest struct {
	DeviceKey string `json:"device_key" binding:"required,max=64"`
	Name      string `json:"name" binding:"max=80"`
	Platform  string `json:"platform" binding:"max=40"`
}

// UpdateDeviceRequest renames a device or makes it the host. Nil fields are
// left untouched.
type UpdateDeviceRequest struct {
	Name   *string `json:"name" binding:"omitempty,min=1,max=80"`
	IsHost *bool   `json:"is_host"`
}
