package resettoken

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shopcore/internal/auth/models"
	id "shopcore/pkg/domain"
)

// InMemoryStore keeps reset tokens in memory. A single mutex makes every
// method atomic, which gives the same guarantees as the Postgres
// transactions.
type InMemoryStore struct {
	mu     sync.Mutex
	tokens map[string]*models.PasswordResetToken
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{tokens: make(map[string]*models.PasswordResetToken)}
}

func (s *InMemoryStore) Replace(_ context.Context, record *models.PasswordResetToken) error {
	if record == nil {
		return fmt.Errorf("reset token is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, t := range s.tokens {
		if t.PrincipalID == record.PrincipalID && t.TenantID == record.TenantID && t.UsedAt == nil {
			delete(s.tokens, key)
		}
	}
	stored := *record
	s.tokens[record.ID] = &stored
	return nil
}

func (s *InMemoryStore) FindActive(_ context.Context, principalID id.PrincipalID, tenantID id.TenantID, tokenHash string, now time.Time) (*models.PasswordResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.match(principalID, tenantID, tokenHash, now); t != nil {
		found := *t
		return &found, nil
	}
	return nil, errNotFound
}

func (s *InMemoryStore) MarkUsed(_ context.Context, principalID id.PrincipalID, tenantID id.TenantID, tokenHash string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.match(principalID, tenantID, tokenHash, now)
	if t == nil {
		return false, nil
	}
	usedAt := now
	t.UsedAt = &usedAt
	return true, nil
}

func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for key, t := range s.tokens {
		if t.ExpiresAt.Before(now) {
			delete(s.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *InMemoryStore) match(principalID id.PrincipalID, tenantID id.TenantID, tokenHash string, now time.Time) *models.PasswordResetToken {
	for _, t := range s.tokens {
		if t.PrincipalID == principalID && t.TenantID == tenantID && t.TokenHash == tokenHash && t.IsActive(now) {
			return t
		}
	}
	return nil
}
