package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kliiq/kliiq/internal/models"
)

// Limit checks made before any request is sent.
var (
	ErrPackLimit    = errors.New("pack limit reached for your plan")
	ErrTooManyApps  = errors.New("too many apps in pack")
	ErrDeleteQuota  = errors.New("pack delete quota reached for your plan")
	ErrPackNotFound = errors.New("pack not found")
)

// PackStore is the CLI's local view of the account's packs. Mutations update
// the view first and roll back, followed by a re-fetch, when the API refuses.
type PackStore struct {
	api   *Client
	packs *Optimistic[[]models.Pack]

	mu     sync.Mutex
	usage  Usage
	loaded bool
}

// NewPackStore creates an empty store. Restore a snapshot, or call Refresh or
// any mutation to load it from the API.
func NewPackStore(api *Client) *PackStore {
	return &PackStore{
		api:   api,
		packs: NewOptimistic[[]models.Pack](nil),
	}
}

// Restore seeds the store from a snapshot saved by an earlier run, so limit
// checks can reject a change without any request. It reports whether the
// snapshot belonged to this API and account.
func (s *PackStore) Restore(snap *PackSnapshot) bool {
	if snap == nil || snap.Key != s.api.CacheKey() {
		return false
	}
	s.mu.Lock()
	s.usage = snap.Usage
	s.loaded = true
	s.mu.Unlock()
	s.packs.Set(append([]models.Pack(nil), snap.Packs...))
	return true
}

// Snapshot returns the current view for the local store, or nil when nothing
// has been loaded.
func (s *PackStore) Snapshot() *PackSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil
	}
	return &PackSnapshot{
		Key:     s.api.CacheKey(),
		SavedAt: time.Now().UTC(),
		Usage:   s.usage,
		Packs:   s.packs.Get(),
	}
}

// Refresh fetches the packs and the plan usage from the API.
func (s *PackStore) Refresh(ctx context.Context) error {
	me, err := s.api.Me(ctx)
	if err != nil {
		return err
	}
	packs, err := s.api.ListPacks(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.usage = me.Usage
	s.loaded = true
	s.mu.Unlock()
	s.packs.Set(packs)
	return nil
}

// Packs returns the local list, newest first.
func (s *PackStore) Packs() []models.Pack {
	return s.packs.Get()
}

// Usage returns the last known plan usage.
func (s *PackStore) Usage() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// State returns the state of the last mutation.
func (s *PackStore) State() MutationState {
	return s.packs.State()
}

func (s *PackStore) ensureLoaded(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded {
		return nil
	}
	return s.Refresh(ctx)
}

func (s *PackStore) resync(ctx context.Context) func() ([]models.Pack, error) {
	return func() ([]models.Pack, error) {
		if err := s.Refresh(ctx); err != nil {
			return nil, err
		}
		return s.packs.Get(), nil
	}
}

// Create makes a new pack, optionally seeded with appID.
func (s *PackStore) Create(ctx context.Context, name, appID string) (*models.Pack, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	current := s.packs.Get()
	limits := s.Usage().Limits
	if limits.MaxPacks > 0 && len(current) >= limits.MaxPacks {
		return nil, ErrPackLimit
	}

	now := time.Now().UTC()
	draft := models.Pack{Name: name, AppIDs: []string{}, CreatedAt: now, UpdatedAt: now}
	if appID != "" {
		draft.AppIDs = []string{appID}
	}

	var created *models.Pack
	err := s.packs.Apply(prepend(draft, current), func() ([]models.Pack, error) {
		pack, err := s.api.CreatePack(ctx, name, appID)
		if err != nil {
			return nil, err
		}
		created = pack
		return prepend(*pack, current), nil
	}, s.resync(ctx))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.usage.Packs++
	s.mu.Unlock()
	return created, nil
}

// AddApp appends appID to the pack. Adding an app that is already there is a
// no-op and sends nothing.
func (s *PackStore) AddApp(ctx context.Context, packID, appID string) (*models.Pack, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	current := s.packs.Get()
	pack, ok := find(current, packID)
	if !ok {
		return nil, ErrPackNotFound
	}
	if contains(pack.AppIDs, appID) {
		return &pack, nil
	}
	if limit := s.Usage().Limits.MaxAppsPerPack; limit > 0 && len(pack.AppIDs) >= limit {
		return nil, ErrTooManyApps
	}

	next := pack
	next.AppIDs = append(append([]string{}, pack.AppIDs...), appID)
	return s.mutate(ctx, current, next, func() (*models.Pack, error) {
		return s.api.AddApp(ctx, packID, appID)
	})
}

// RemoveApp drops appID from the pack.
func (s *PackStore) RemoveApp(ctx context.Context, packID, appID string) (*models.Pack, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	current := s.packs.Get()
	pack, ok := find(current, packID)
	if !ok {
		return nil, ErrPackNotFound
	}

	next := pack
	next.AppIDs = make([]string, 0, len(pack.AppIDs))
	for _, id := range pack.AppIDs {
		if id != appID {
			next.AppIDs = append(next.AppIDs, id)
		}
	}
	return s.mutate(ctx, current, next, func() (*models.Pack, error) {
		return s.api.RemoveApp(ctx, packID, appID)
	})
}

// Rename changes the pack's name.
func (s *PackStore) Rename(ctx context.Context, packID, name string) (*models.Pack, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	current := s.packs.Get()
	pack, ok := find(current, packID)
	if !ok {
		return nil, ErrPackNotFound
	}

	next := pack
	next.Name = name
	return s.mutate(ctx, current, next, func() (*models.Pack, error) {
		return s.api.UpdatePack(ctx, packID, models.UpdatePackRequest{Name: &name})
	})
}

// Delete removes the pack, consuming one of the plan's deletes.
func (s *PackStore) Delete(ctx context.Context, packID string) error {
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}

	current := s.packs.Get()
	if _, ok := find(current, packID); !ok {
		return ErrPackNotFound
	}
	usage := s.Usage()
	if usage.Limits.MaxPackDeletes > 0 && usage.PackDeletes >= usage.Limits.MaxPackDeletes {
		return ErrDeleteQuota
	}

	next := make([]models.Pack, 0, len(current))
	for _, p := range current {
		if p.ID != packID {
			next = append(next, p)
		}
	}

	err := s.packs.Apply(next, func() ([]models.Pack, error) {
		if err := s.api.DeletePack(ctx, packID); err != nil {
			return nil, err
		}
		return next, nil
	}, s.resync(ctx))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.usage.Packs--
	s.usage.PackDeletes++
	s.mu.Unlock()
	return nil
}

func (s *PackStore) mutate(ctx context.Context, current []models.Pack, next models.Pack, call func() (*models.Pack, error)) (*models.Pack, error) {
	var confirmed *models.Pack
	err := s.packs.Apply(replace(current, next), func() ([]models.Pack, error) {
		pack, err := call()
		if err != nil {
			return nil, err
		}
		confirmed = pack
		return replace(current, *pack), nil
	}, s.resync(ctx))
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

func prepend(p models.Pack, packs []models.Pack) []models.Pack {
	out := make([]models.Pack, 0, len(packs)+1)
	out = append(out, p)
	return append(out, packs...)
}

func replace(packs []models.Pack, p models.Pack) []models.Pack {
	out := make([]models.Pack, len(packs))
	for i, existing := range packs {
		if existing.ID == p.ID {
			out[i] = p
		} else {
			out[i] = existing
		}
	}
	return out
}

func find(packs []models.Pack, id string) (models.Pack, bool) {
	for _, p := range packs {
		if p.ID == id {
			return p, true
		}
	}
	return models.Pack{}, false
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
