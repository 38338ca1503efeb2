package renditions

import "embed-delivery/internal/media"

// ResourceState is the in-memory record for one resource and its renditions.
type ResourceState struct {
	Resource   *media.Resource
	Renditions map[int]media.Rendition
}

// Store is the persistence abstraction behind InMemoryRepository.
// The repository serializes access; Store implementations need no locking.
type Store interface {
	GetResource(id string) (*ResourceState, bool)
	SetResource(s *ResourceState)
	DeleteResource(id string)
	ListResourceIDs() []string
}

// InMemoryStore is a map-backed Store.
type InMemoryStore struct {
	resources map[string]*ResourceState
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		resources: make(map[string]*ResourceState),
	}
}

// GetResource implements Store.GetResource.
func (s *InMemoryStore) GetResource(id string) (*ResourceState, bool) {
	st, ok := s.resources[id]
	return st, ok
}

// SetResource implements Store.SetResource.
func (s *InMemoryStore) SetResource(st *ResourceState) {
	if st.Resource == nil {
		return
	}
	s.resources[st.Resource.ID] = st
}

// DeleteResource implements Store.DeleteResource.
func (s *InMemoryStore) DeleteResource(id string) {
	delete(s.resources, id)
}

// ListResourceIDs implements Store.ListResourceIDs.
func (s *InMemoryStore) ListResourceIDs() []string {
	ids := make([]string, 0, len(s.resources))
	for id := range s.resources {
		ids = append(ids, id)
	}
	return ids
}
