package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"codeberg.org/gruf/go-mutexes"

	"github.com/bloglist/apiserver/internal/auth"
	"github.com/bloglist/apiserver/types"
)

// BlogRepository defines persistence operations for blogs.
type BlogRepository interface {
	List(ctx context.Context) ([]types.Blog, error)
	Get(ctx context.Context, id int64) (types.Blog, error)
	Create(ctx context.Context, blog types.Blog) (types.Blog, error)
	Update(ctx context.Context, blog types.Blog) (types.Blog, error)
	IncrementLikes(ctx context.Context, id int64) (types.Blog, error)
	Delete(ctx context.Context, id int64) error
	Reset(ctx context.Context) error
}

// SessionVerifier confirms that a session is still live.
type SessionVerifier interface {
	Verify(ctx context.Context, session *types.Session) error
}

// BlogService encapsulates blog use-cases. Mutations of one blog are
// serialized on a per-id lock, so a delete is never interleaved with an
// edit or like of the same blog.
type BlogService struct {
	repo     BlogRepository
	sessions SessionVerifier
	events   *EventPublisher
	locks    *mutexes.MutexMap
}

func NewBlogService(repo BlogRepository, sessions SessionVerifier, events *EventPublisher) *BlogService {
	return &BlogService{
		repo:     repo,
		sessions: sessions,
		events:   events,
		locks:    &mutexes.MutexMap{},
	}
}

func (s *BlogService) lock(id int64) func() {
	return s.locks.Lock(strconv.FormatInt(id, 10))
}

// List returns every blog, most liked first, ties in creation order.
func (s *BlogService) List(ctx context.Context) ([]types.Blog, error) {
	return s.repo.List(ctx)
}

func (s *BlogService) Get(ctx context.Context, id int64) (types.Blog, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a new blog owned by the session's user.
func (s *BlogService) Create(ctx context.Context, session *types.Session, title, author, url string) (types.Blog, error) {
	if err := s.sessions.Verify(ctx, session); err != nil {
		return types.Blog{}, err
	}

	blog := types.Blog{
		Title:     strings.TrimSpace(title),
		Author:    strings.TrimSpace(author),
		URL:       strings.TrimSpace(url),
		CreatorID: session.UserID,
	}
	if blog.Title == "" || blog.URL == "" {
		return types.Blog{}, ErrInvalidInput
	}

	created, err := s.repo.Create(ctx, blog)
	if err != nil {
		return types.Blog{}, fmt.Errorf("create blog: %w", err)
	}

	s.events.Publish(ctx, newBlogEvent(EventBlogCreated, created, session))
	return created, nil
}

// Update edits the blog's metadata. Anyone may edit; only the supplied
// fields change.
func (s *BlogService) Update(ctx context.Context, session *types.Session, id int64, patch types.BlogPatch) (types.Blog, error) {
	patch, err := normalizePatch(patch)
	if err != nil {
		return types.Blog{}, err
	}

	updated, err := s.update(ctx, id, patch)
	if err != nil {
		return types.Blog{}, err
	}

	s.events.Publish(ctx, newBlogEvent(EventBlogUpdated, updated, session))
	return updated, nil
}

func (s *BlogService) update(ctx context.Context, id int64, patch types.BlogPatch) (types.Blog, error) {
	unlock := s.lock(id)
	defer unlock()

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Blog{}, err
	}
	if patch.Empty() {
		return current, nil
	}

	updated, err := s.repo.Update(ctx, patch.Apply(current))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.Blog{}, ErrNotFound
		}
		return types.Blog{}, fmt.Errorf("update blog: %w", err)
	}
	return updated, nil
}

// ToggleLike adds exactly one like per call.
func (s *BlogService) ToggleLike(ctx context.Context, session *types.Session, id int64) (types.Blog, error) {
	liked, err := s.incrementLikes(ctx, id)
	if err != nil {
		return types.Blog{}, err
	}

	s.events.Publish(ctx, newBlogEvent(EventBlogLiked, liked, session))
	return liked, nil
}

func (s *BlogService) incrementLikes(ctx context.Context, id int64) (types.Blog, error) {
	unlock := s.lock(id)
	defer unlock()

	liked, err := s.repo.IncrementLikes(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.Blog{}, ErrNotFound
		}
		return types.Blog{}, fmt.Errorf("like blog: %w", err)
	}
	return liked, nil
}

// Delete removes the blog if the session belongs to its creator.
func (s *BlogService) Delete(ctx context.Context, session *types.Session, id int64) error {
	if err := s.sessions.Verify(ctx, session); err != nil {
		return err
	}

	deleted, err := s.delete(ctx, session, id)
	if err != nil {
		return err
	}

	s.events.Publish(ctx, newBlogEvent(EventBlogDeleted, deleted, session))
	return nil
}

func (s *BlogService) delete(ctx context.Context, session *types.Session, id int64) (types.Blog, error) {
	unlock := s.lock(id)
	defer unlock()

	blog, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Blog{}, err
	}
	if !auth.CanDelete(session, blog) {
		return types.Blog{}, ErrForbidden
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.Blog{}, ErrNotFound
		}
		return types.Blog{}, fmt.Errorf("delete blog: %w", err)
	}
	return blog, nil
}

// normalizePatch trims the supplied fields. Title and url may be changed but
// not cleared.
func normalizePatch(patch types.BlogPatch) (types.BlogPatch, error) {
	trim := func(value *string) *string {
		if value == nil {
			return nil
		}
		trimmed := strings.TrimSpace(*value)
		return &trimmed
	}

	normalized := types.BlogPatch{
		Title:  trim(patch.Title),
		Author: trim(patch.Author),
		URL:    trim(patch.URL),
	}
	if normalized.Title != nil && *normalized.Title == "" {
		return types.BlogPatch{}, ErrInvalidInput
	}
	if normalized.URL != nil && *normalized.URL == "" {
		return types.BlogPatch{}, ErrInvalidInput
	}
	return normalized, nil
}
