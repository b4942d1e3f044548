package tenant

import (
	"context"
	"fmt"
	"sync"

	"shopcore/internal/tenant/models"
	id "shopcore/pkg/domain"
	"shopcore/pkg/platform/sentinel"
)

// InMemory stores tenants in memory for tests and the demo server.
type InMemory struct {
	mu      sync.RWMutex
	tenants map[id.TenantID]models.Tenant
}

func NewInMemory() *InMemory {
	return &InMemory{tenants: make(map[id.TenantID]models.Tenant)}
}

// Save inserts or replaces a tenant. Provisioning owns tenants in
// production; this exists for seeding.
func (s *InMemory) Save(_ context.Context, t *models.Tenant) error {
	if t == nil {
		return fmt.Errorf("tenant is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = *t
	return nil
}

func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("tenant %q: %w", tenantID, sentinel.ErrNotFound)
	}
	return &t, nil
}
