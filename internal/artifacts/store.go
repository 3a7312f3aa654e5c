// Package artifacts persists derived elevation profiles. Profiles are
// written once under a shape id and read back by the statistics engine.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"shiftplanner.ebus.dev/internal/logging"
	"shiftplanner.ebus.dev/internal/models"
)

var ErrNotFound = errors.New("artifact not found")

// Store is a flat key/value blob store.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete is a no-op for absent keys.
	Delete(ctx context.Context, key string) error
}

// ProfileKey is the store key for the profile of a shape.
func ProfileKey(shapeID string) string {
	return "profiles/" + shapeID + ".csv.zst"
}

// ProfileStore encodes elevation profiles on top of a Store.
type ProfileStore struct {
	store  Store
	logger *slog.Logger
}

func NewProfileStore(store Store, logger *slog.Logger) *ProfileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileStore{store: store, logger: logger.With(slog.String("component", "profile_store"))}
}

// Save validates and stores a profile under its shape id.
func (p *ProfileStore) Save(ctx context.Context, profile models.ElevationProfile) error {
	if profile.ShapeID == "" {
		return errors.New("profile has no shape id")
	}
	if err := profile.Validate(); err != nil {
		return err
	}
	data, err := EncodeProfile(profile)
	if err != nil {
		return err
	}
	if err := p.store.Put(ctx, ProfileKey(profile.ShapeID), data); err != nil {
		return fmt.Errorf("storing profile %q: %w", profile.ShapeID, err)
	}
	logging.LogOperation(p.logger, "profile_stored",
		slog.String("shape_id", profile.ShapeID),
		slog.Int("points", len(profile.Points)),
		slog.Int("size_bytes", len(data)))
	return nil
}

// Load returns ErrNotFound when no profile exists for shapeID.
func (p *ProfileStore) Load(ctx context.Context, shapeID string) (models.ElevationProfile, error) {
	data, err := p.store.Get(ctx, ProfileKey(shapeID))
	if err != nil {
		return models.ElevationProfile{}, err
	}
	return DecodeProfile(shapeID, data)
}

func (p *ProfileStore) Remove(ctx context.Context, shapeID string) error {
	return p.store.Delete(ctx, ProfileKey(shapeID))
}

// MemoryStore keeps blobs in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

// Len reports the number of stored blobs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
