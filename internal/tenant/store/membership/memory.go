package membership

import (
	"context"
	"slices"
	"sync"
	"time"

	"shopcore/internal/tenant/models"
	id "shopcore/pkg/domain"
)

// InMemory keeps customer memberships in memory.
type InMemory struct {
	mu          sync.RWMutex
	memberships map[id.PrincipalID][]models.Membership
}

func NewInMemory() *InMemory {
	return &InMemory{memberships: make(map[id.PrincipalID][]models.Membership)}
}

// Add records a membership; adding an existing pair is a no-op.
func (s *InMemory) Add(_ context.Context, principalID id.PrincipalID, tenantID id.TenantID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.memberships[principalID] {
		if m.TenantID == tenantID {
			return nil
		}
	}
	s.memberships[principalID] = append(s.memberships[principalID], models.Membership{
		PrincipalID: principalID,
		TenantID:    tenantID,
		CreatedAt:   at,
	})
	return nil
}

// ListTenantIDs returns the principal's tenants in a stable order.
func (s *InMemory) ListTenantIDs(_ context.Context, principalID id.PrincipalID) ([]id.TenantID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]id.TenantID, 0, len(s.memberships[principalID]))
	for _, m := range s.memberships[principalID] {
		out = append(out, m.TenantID)
	}
	slices.Sort(out)
	return out, nil
}
