package models

import "github.com/kliiq/kliiq/internal/installer"

// GenerateInstallerRequest asks for an installer. Either Apps (id and name
// pairs) or AppIDs (resolved against the catalog) must be set.
type GenerateInstallerRequest struct {
	Apps   []installer.App `json:"apps"`
	AppIDs []string        `json:"app_ids"`
	Format string          `json:"format"`
}
