package services

import (
	"context"
	"fmt"
)

// ResetService wipes all state. It backs the test-support reset endpoint.
type ResetService struct {
	blogs    BlogRepository
	users    UserRepository
	sessions SessionStore
}

func NewResetService(blogs BlogRepository, users UserRepository, sessions SessionStore) *ResetService {
	return &ResetService{blogs: blogs, users: users, sessions: sessions}
}

// Reset removes blogs, then users, then sessions. Blogs go first because
// they reference users; sessions go so no principal outlives its user.
func (s *ResetService) Reset(ctx context.Context) error {
	if err := s.blogs.Reset(ctx); err != nil {
		return fmt.Errorf("reset blogs: %w", err)
	}
	if err := s.users.Reset(ctx); err != nil {
		return fmt.Errorf("reset users: %w", err)
	}
	if err := s.sessions.Reset(ctx); err != nil {
		return fmt.Errorf("reset sessions: %w", err)
	}
	return nil
}
