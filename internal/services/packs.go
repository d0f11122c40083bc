package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kliiq/kliiq/internal/catalog"
	"github.com/kliiq/kliiq/internal/config"
	"github.com/kliiq/kliiq/internal/database"
	"github.com/kliiq/kliiq/internal/installer"
	"github.com/kliiq/kliiq/internal/models"
	"github.com/kliiq/kliiq/internal/validation"
)

// MaxPackNameLength is the longest pack name accepted, in characters.
const MaxPackNameLength = 80

var (
	// ErrPackNotFound indicates the pack does not exist or belongs to another account.
	ErrPackNotFound = errors.New("pack not found")
	// ErrPackLimit indicates the account already owns as many packs as its plan allows.
	ErrPackLimit = errors.New("pack limit reached for your plan")
	// ErrTooManyApps indicates a pack would exceed the per-pack app limit.
	ErrTooManyApps = errors.New("too many apps in pack")
	// ErrDeleteQuota indicates the plan's pack deletion quota is used up.
	ErrDeleteQuota = errors.New("pack deletion quota exhausted for your plan")
	// ErrInvalidPackName indicates an empty or overlong pack name.
	ErrInvalidPackName = errors.New("pack name must be 1-80 characters")
	// ErrUnknownApp indicates an app id that is not in the catalog.
	ErrUnknownApp = errors.New("unknown app id")
)

// AccountUsage reports what an account has consumed against its plan.
type AccountUsage struct {
	Plan        string            `json:"plan"`
	Limits      config.PlanLimits `json:"limits"`
	Packs       int               `json:"packs"`
	PackDeletes int               `json:"pack_deletes"`
}

// rowQuerier is satisfied by *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}

// PackService manages the packs of an account.
type PackService struct {
	db      *database.DB
	catalog *catalog.Catalog
	events  *EventService
	limits  config.LimitsConfig
}

// NewPackService creates a new PackService instance. events may be nil.
func NewPackService(db *database.DB, cat *catalog.Catalog, limits config.LimitsConfig, events *EventService) *PackService {
	return &PackService{
		db:      db,
		catalog: cat,
		limits:  limits,
		events:  events,
	}
}

// ListPacks returns the account's packs, newest first.
func (s *PackService) ListPacks(account *models.Account) ([]models.Pack, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, name, app_ids, created_at, updated_at
		FROM packs
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, account.ID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	packs := make([]models.Pack, 0)
	for rows.Next() {
		var pack models.Pack
		var appIDs string
		if err := rows.Scan(&pack.ID, &pack.UserID, &pack.Name, &appIDs, &pack.CreatedAt, &pack.UpdatedAt); err != nil {
			return nil, err
		}
		if pack.AppIDs, err = decodeAppIDs(appIDs); err != nil {
			return nil, err
		}
		packs = append(packs, pack)
	}
	return packs, rows.Err()
}

// GetPack returns one of the account's packs.
func (s *PackService) GetPack(account *models.Account, id string) (*models.Pack, error) {
	return getPack(s.db, account.ID, id)
}

// CreatePack creates a pack, empty or seeded with seedAppID. The plan's pack
// cap is enforced by the insert itself.
func (s *PackService) CreatePack(account *models.Account, name, seedAppID string) (*models.Pack, error) {
	name, err := cleanPackName(name)
	if err != nil {
		return nil, err
	}

	appIDs := []string{}
	if seedAppID = strings.TrimSpace(seedAppID); seedAppID != "" {
		if !s.catalog.Contains(seedAppID) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownApp, seedAppID)
		}
		appIDs = append(appIDs, seedAppID)
	}
	encoded, err := encodeAppIDs(appIDs)
	if err != nil {
		return nil, err
	}

	limits := s.limits.ForPlan(account.Plan)
	id := uuid.New().String()
	now := time.Now().UTC()

	var result sql.Result
	if limits.MaxPacks > 0 {
		result, err = s.db.Exec(`
			INSERT INTO packs (id, user_id, name, app_ids, created_at, updated_at)
			SELECT ?, ?, ?, ?, ?, ?
			WHERE (SELECT COUNT(*) FROM packs WHERE user_id = ?) < ?
		`, id, account.ID, name, encoded, now, now, account.ID, limits.MaxPacks)
	} else {
		result, err = s.db.Exec(`
			INSERT INTO packs (id, user_id, name, app_ids, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, account.ID, name, encoded, now, now)
	}
	if err != nil {
		return nil, err
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if inserted == 0 {
		return nil, ErrPackLimit
	}

	pack, err := s.GetPack(account, id)
	if err != nil {
		return nil, err
	}
	s.publish(account, EventPackCreated, pack)
	return pack, nil
}

// UpdatePack renames a pack and/or replaces its app list.
func (s *PackService) UpdatePack(account *models.Account, id string, req *models.UpdatePackRequest) (*models.Pack, error) {
	var name *string
	if req.Name != nil {
		cleaned, err := cleanPackName(*req.Name)
		if err != nil {
			return nil, err
		}
		name = &cleaned
	}

	var appIDs []string
	if req.AppIDs != nil {
		var err error
		if appIDs, err = s.cleanAppIDs(req.AppIDs); err != nil {
			return nil, err
		}
	}

	return s.mutate(account, id, func(pack *models.Pack) (bool, error) {
		changed := false
		if name != nil && *name != pack.Name {
			pack.Name = *name
			changed = true
		}
		if appIDs != nil {
			pack.AppIDs = appIDs
			changed = true
		}
		return changed, nil
	})
}

// AddApp appends appID to the pack. Adding an id already present is a no-op.
func (s *PackService) AddApp(account *models.Account, id, appID string) (*models.Pack, error) {
	appID = strings.TrimSpace(appID)
	if !s.catalog.Contains(appID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownApp, appID)
	}

	limit := s.limits.MaxAppsPerPack
	return s.mutate(account, id, func(pack *models.Pack) (bool, error) {
		for _, existing := range pack.AppIDs {
			if existing == appID {
				return false, nil
			}
		}
		if len(pack.AppIDs) >= limit {
			return false, fmt.Errorf("%w: a pack holds at most %d apps", ErrTooManyApps, limit)
		}
		pack.AppIDs = append(pack.AppIDs, appID)
		return true, nil
	})
}

// RemoveApp drops appID from the pack. Removing an absent id is a no-op.
func (s *PackService) RemoveApp(account *models.Account, id, appID string) (*models.Pack, error) {
	return s.mutate(account, id, func(pack *models.Pack) (bool, error) {
		kept := make([]string, 0, len(pack.AppIDs))
		for _, existing := range pack.AppIDs {
			if existing != appID {
				kept = append(kept, existing)
			}
		}
		if len(kept) == len(pack.AppIDs) {
			return false, nil
		}
		pack.AppIDs = kept
		return true, nil
	})
}

// DeletePack deletes a pack and charges it against the plan's deletion quota.
func (s *PackService) DeletePack(account *models.Account, id string) error {
	limits := s.limits.ForPlan(account.Plan)

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := getPack(tx, account.ID, id); err != nil {
		return err
	}

	if limits.MaxPackDeletes > 0 {
		used, err := packDeletes(tx, account.ID)
		if err != nil {
			return err
		}
		if used >= limits.MaxPackDeletes {
			return ErrDeleteQuota
		}
	}

	if _, err := tx.Exec("DELETE FROM packs WHERE id = ? AND user_id = ?", id, account.ID); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO account_usage (user_id, pack_deletes) VALUES (?, 1)
		ON CONFLICT(user_id) DO UPDATE SET pack_deletes = pack_deletes + 1
	`, account.ID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.publish(account, EventPackDeleted, nil, id)
	return nil
}

// Usage reports the account's pack count and deletions against its plan.
func (s *PackService) Usage(account *models.Account) (*AccountUsage, error) {
	usage := &AccountUsage{
		Plan:   account.Plan,
		Limits: s.limits.ForPlan(account.Plan),
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM packs WHERE user_id = ?", account.ID).Scan(&usage.Packs); err != nil {
		return nil, err
	}

	deletes, err := packDeletes(s.db, account.ID)
	if err != nil {
		return nil, err
	}
	usage.PackDeletes = deletes
	return usage, nil
}

// Installer renders the pack through the script generator. Ids no longer in
// the catalog are skipped.
func (s *PackService) Installer(account *models.Account, id string) (*installer.Script, error) {
	pack, err := s.GetPack(account, id)
	if err != nil {
		return nil, err
	}
	return installer.Generate(s.catalog.Resolve(pack.AppIDs))
}

// mutate loads the pack, applies fn and stores the result in one transaction.
// fn reports whether it changed anything.
func (s *PackService) mutate(account *models.Account, id string, fn func(*models.Pack) (bool, error)) (*models.Pack, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	pack, err := getPack(tx, account.ID, id)
	if err != nil {
		return nil, err
	}

	changed, err := fn(pack)
	if err != nil {
		return nil, err
	}
	if !changed {
		return pack, nil
	}

	encoded, err := encodeAppIDs(pack.AppIDs)
	if err != nil {
		return nil, err
	}
	pack.UpdatedAt = time.Now().UTC()

	if _, err := tx.Exec(
		"UPDATE packs SET name = ?, app_ids = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		pack.Name, encoded, pack.UpdatedAt, pack.ID, account.ID,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.publish(account, EventPackUpdated, pack)
	return pack, nil
}

func (s *PackService) publish(account *models.Account, eventType string, pack *models.Pack, ids ...string) {
	ev := Event{Type: eventType}
	if pack != nil {
		ev.ResourceID = pack.ID
		ev.Data = pack
	} else if len(ids) > 0 {
		ev.ResourceID = ids[0]
	}
	s.events.Publish(account.ID, ev)
}

// cleanAppIDs trims, deduplicates and validates a replacement app list.
func (s *PackService) cleanAppIDs(ids []string) ([]string, error) {
	seen := make(map[string]bool, len(ids))
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		if !s.catalog.Contains(id) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownApp, id)
		}
		seen[id] = true
		cleaned = append(cleaned, id)
	}
	if len(cleaned) > s.limits.MaxAppsPerPack {
		return nil, fmt.Errorf("%w: a pack holds at most %d apps", ErrTooManyApps, s.limits.MaxAppsPerPack)
	}
	return cleaned, nil
}

func cleanPackName(name string) (string, error) {
	cleaned, err := validation.CleanName(name, MaxPackNameLength)
	if err != nil {
		return "", ErrInvalidPackName
	}
	return cleaned, nil
}

func getPack(q rowQuerier, userID, id string) (*models.Pack, error) {
	var pack models.Pack
	var appIDs string
	err := q.QueryRow(
		"SELECT id, user_id, name, app_ids, created_at, updated_at FROM packs WHERE id = ? AND user_id = ?",
		id, userID,
	).Scan(&pack.ID, &pack.UserID, &pack.Name, &appIDs, &pack.CreatedAt, &pack.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrPackNotFound
	}
	if err != nil {
		return nil, err
	}

	if pack.AppIDs, err = decodeAppIDs(appIDs); err != nil {
		return nil, err
	}
	return &pack, nil
}

func packDeletes(q rowQuerier, userID string) (int, error) {
	var used int
	err := q.QueryRow("SELECT pack_deletes FROM account_usage WHERE user_id = ?", userID).Scan(&used)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return used, err
}

func encodeAppIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeAppIDs(raw string) ([]string, error) {
	ids := []string{}
	if raw == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode app ids: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
