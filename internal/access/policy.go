package access

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Disposition is the verdict stored on a policy record.
type Disposition string

const (
	Allow   Disposition = "allow"
	Deny    Disposition = "deny"
	Unknown Disposition = "unknown"
)

// ParseDisposition maps free-form input onto a Disposition; anything
// unrecognized is Unknown.
func ParseDisposition(s string) Disposition {
	switch Disposition(strings.ToLower(strings.TrimSpace(s))) {
	case Allow:
		return Allow
	case Deny:
		return Deny
	default:
		return Unknown
	}
}

// Policy is the access record for one normalized domain. RecordID correlates
// decisions in the audit log.
type Policy struct {
	Domain      string      `json:"domain"`
	RecordID    string      `json:"record_id"`
	Disposition Disposition `json:"disposition"`
}

// ErrNoPolicy is returned by a PolicyStore when the domain has no record.
var ErrNoPolicy = errors.New("no policy for domain")

// PolicyStore is the read side of the policy records. The gate never writes.
type PolicyStore interface {
	FindPolicy(ctx context.Context, domain string) (Policy, error)
}

// MemoryPolicyStore is a map-backed PolicyStore.
type MemoryPolicyStore struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

// NewMemoryPolicyStore returns a store seeded with policies.
func NewMemoryPolicyStore(policies ...Policy) *MemoryPolicyStore {
	s := &MemoryPolicyStore{policies: make(map[string]Policy, len(policies))}
	for _, p := range policies {
		s.policies[p.Domain] = p
	}
	return s
}

// FindPolicy implements PolicyStore.
func (s *MemoryPolicyStore) FindPolicy(ctx context.Context, domain string) (Policy, error) {
	if err := ctx.Err(); err != nil {
		return Policy{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[domain]
	if !ok {
		return Policy{}, ErrNoPolicy
	}
	return p, nil
}

// UpsertPolicy replaces the record for p.Domain.
func (s *MemoryPolicyStore) UpsertPolicy(_ context.Context, p Policy) (Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[p.Domain] = p
	return p, nil
}

// PolicyWriter is implemented by stores that accept administrative writes.
type PolicyWriter interface {
	UpsertPolicy(ctx context.Context, p Policy) (Policy, error)
}

// ErrReadOnly is returned when a write reaches a store that cannot persist it.
var ErrReadOnly = errors.New("policy store is read-only")
