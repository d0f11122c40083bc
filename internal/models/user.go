// Package models defines the data models for accounts, devices and packs.
package models

// Account is the identity behind a bearer token, as reported by the identity
// provider.
type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Plan  string `json:"plan"`
}
