// Package renditions persists resource and rendition metadata: durations, the
// relative path of every transcoded file, and its size in bytes.
package renditions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"embed-delivery/internal/media"
)

// Repository defines the concurrency-safe contract for rendition metadata.
//
// From the transcoder's perspective the store is append-only per job: renditions are
// created, never updated, and only removed together with their resource.
type Repository interface {
	// CreateResource records an accepted source asset.
	CreateResource(ctx context.Context, r media.Resource) error

	// GetResource returns the resource or media.ErrNotFound.
	GetResource(ctx context.Context, id string) (media.Resource, error)

	// DeleteResource removes the resource and, by cascade, its renditions.
	// Deleting a missing resource is a no-op.
	DeleteResource(ctx context.Context, id string) error

	// CreateRendition records one successfully transcoded tier. The parent
	// resource must exist; a second rendition for the same quality is rejected.
	CreateRendition(ctx context.Context, r media.Rendition) error

	// FindRenditions returns renditions of resourceID with Quality >= minQuality,
	// ordered ascending by quality. An unknown resource yields an empty slice.
	FindRenditions(ctx context.Context, resourceID string, minQuality int) ([]media.Rendition, error)

	// DeleteRenditions removes all renditions of resourceID and reports how many.
	DeleteRenditions(ctx context.Context, resourceID string) (int, error)
}

// ErrDuplicate is returned when a rendition for the same resource and quality exists.
var ErrDuplicate = errors.New("rendition already exists")

// InMemoryRepository is a concurrency-safe in-memory implementation of Repository.
// It uses a Store for persistence; by default that is an InMemoryStore.
type InMemoryRepository struct {
	mu    sync.RWMutex
	store Store
}

// NewInMemoryRepository constructs a new repository with a default in-memory store.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithStore(NewInMemoryStore())
}

// NewInMemoryRepositoryWithStore constructs a repository that uses the given Store.
func NewInMemoryRepositoryWithStore(store Store) *InMemoryRepository {
	return &InMemoryRepository{store: store}
}

// CreateResource implements Repository.CreateResource.
func (r *InMemoryRepository) CreateResource(_ context.Context, res media.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.store.GetResource(res.ID); exists {
		return fmt.Errorf("resource %s: %w", res.ID, ErrDuplicate)
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	r.store.SetResource(&ResourceState{
		Resource:   &res,
		Renditions: make(map[int]media.Rendition),
	})
	return nil
}

// GetResource implements Repository.GetResource.
func (r *InMemoryRepository) GetResource(_ context.Context, id string) (media.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.store.GetResource(id)
	if !ok {
		return media.Resource{}, media.ErrNotFound
	}
	return *st.Resource, nil
}

// DeleteResource implements Repository.DeleteResource.
func (r *InMemoryRepository) DeleteResource(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.store.DeleteResource(id)
	return nil
}

// CreateRendition implements Repository.CreateRendition.
func (r *InMemoryRepository) CreateRendition(_ context.Context, rend media.Rendition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.store.GetResource(rend.ResourceID)
	if !ok {
		return fmt.Errorf("resource %s: %w", rend.ResourceID, media.ErrNotFound)
	}
	if _, exists := st.Renditions[rend.Quality]; exists {
		return fmt.Errorf("quality %d: %w", rend.Quality, ErrDuplicate)
	}
	st.Renditions[rend.Quality] = rend
	return nil
}

// FindRenditions implements Repository.FindRenditions.
func (r *InMemoryRepository) FindRenditions(_ context.Context, resourceID string, minQuality int) ([]media.Rendition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.store.GetResource(resourceID)
	if !ok {
		return nil, nil
	}

	// Copy out of the map so callers never share internal state.
	out := make([]media.Rendition, 0, len(st.Renditions))
	for q, rend := range st.Renditions {
		if q >= minQuality {
			out = append(out, rend)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Quality < out[j].Quality })
	return out, nil
}

// DeleteRenditions implements Repository.DeleteRenditions.
func (r *InMemoryRepository) DeleteRenditions(_ context.Context, resourceID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.store.GetResource(resourceID)
	if !ok {
		return 0, nil
	}
	n := len(st.Renditions)
	st.Renditions = make(map[int]media.Rendition)
	return n, nil
}

// ResourceCount returns the number of stored resources. Used for metrics.
func (r *InMemoryRepository) ResourceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.store.ListResourceIDs())
}
