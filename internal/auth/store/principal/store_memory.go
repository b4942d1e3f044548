package principal

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"shopcore/internal/auth/models"
	id "shopcore/pkg/domain"
	"shopcore/pkg/platform/sentinel"
)

// MembershipLister supplies customer memberships to the in-memory store so
// tenant-scoped lookups follow the same rule as the Postgres query.
type MembershipLister interface {
	ListTenantIDs(ctx context.Context, principalID id.PrincipalID) ([]id.TenantID, error)
}

// InMemoryStore keeps principals in memory for tests and the demo server.
// Returned principals are copies; callers cannot mutate stored state.
type InMemoryStore struct {
	mu          sync.RWMutex
	principals  map[id.PrincipalID]models.Principal
	memberships MembershipLister
}

func NewInMemory(memberships MembershipLister) *InMemoryStore {
	return &InMemoryStore{
		principals:  make(map[id.PrincipalID]models.Principal),
		memberships: memberships,
	}
}

func (s *InMemoryStore) Save(_ context.Context, p *models.Principal) error {
	if p == nil {
		return fmt.Errorf("principal is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principals[p.ID] = *p
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, principalID id.PrincipalID) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.principals[principalID]
	if !ok {
		return nil, fmt.Errorf("principal not found: %w", sentinel.ErrNotFound)
	}
	return &p, nil
}

// FindByEmailInTenant returns the principal with email that belongs to
// tenantID, either as bound staff or as a customer member.
func (s *InMemoryStore) FindByEmailInTenant(ctx context.Context, email string, tenantID id.TenantID) (*models.Principal, error) {
	s.mu.RLock()
	candidates := make([]models.Principal, 0, 1)
	for _, p := range s.principals {
		if strings.EqualFold(p.Email, email) {
			candidates = append(candidates, p)
		}
	}
	s.mu.RUnlock()

	// Bound staff first, matching the Postgres ordering.
	slices.SortFunc(candidates, func(a, b models.Principal) int {
		return strings.Compare(string(b.Binding), string(a.Binding))
	})
	for _, p := range candidates {
		if p.IsBound() {
			if p.Binding == tenantID {
				return &p, nil
			}
			continue
		}
		if s.memberships == nil {
			continue
		}
		tenants, err := s.memberships.ListTenantIDs(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("list memberships: %w", err)
		}
		if slices.Contains(tenants, tenantID) {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("principal not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) UpdatePasswordHash(_ context.Context, principalID id.PrincipalID, hash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[principalID]
	if !ok {
		return fmt.Errorf("principal not found: %w", sentinel.ErrNotFound)
	}
	p.PasswordHash = hash
	p.UpdatedAt = at
	s.principals[principalID] = p
	return nil
}
