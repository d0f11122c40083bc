package models

import "time"

// Pack is a named, ordered list of catalog ids owned by one account.
type Pack struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	AppIDs    []string  `json:"app_ids"`
}

// CreatePackRequest creates a pack, optionally seeded with one app.
type CreatePackRequest struct {
	Name  string `json:"name" binding:"required,max=80"`
	AppID string `json:"app_id"`
}

// UpdatePackRequest patches a pack. A nil AppIDs leaves the list untouched;
// a non-nil one replaces it.
type UpdatePackRequest struct {
	Name   *string  `json:"name" binding:"omitempty,max=80"`
	AppIDs []string `json:"app_ids"`
}

// AddAppRequest appends one app to a pack.
type AddAppRequest struct {
	AppID string `json:"app_id" binding:"required"`
}
