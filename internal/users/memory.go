package users

import (
	"context"
	"sync"
	"time"

	"github.com/finbridge/finbridge/internal/auth/models"
	"github.com/google/uuid"
)

// MemoryStore implements Store with an in-process map. Test use only.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

// NewMemoryStore creates an empty in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*models.User)}
}

func (s *MemoryStore) Upsert(_ context.Context, profile *models.UserInfo) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.users[profile.Sub]; ok {
		existing.Email = profile.Email
		existing.Name = profile.Name
		existing.Picture = profile.Picture
		existing.Locale = profile.Locale
		existing.UpdatedAt = now
		copied := *existing
		return &copied, nil
	}

	user := &models.User{
		ID:        uuid.NewString(),
		Sub:       profile.Sub,
		Email:     profile.Email,
		Name:      profile.Name,
		Picture:   profile.Picture,
		Locale:    profile.Locale,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users[profile.Sub] = user
	copied := *user
	return &copied, nil
}

func (s *MemoryStore) FindBySub(_ context.Context, sub string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[sub]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *MemoryStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
