package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/bloglist/apiserver/types"
)

// MemoryUserRepository keeps users in process memory. It backs the memory
// store driver used for local development and tests.
type MemoryUserRepository struct {
	mu         sync.RWMutex
	nextID     int64
	users      map[int64]types.User
	byUsername map[string]int64
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:      make(map[int64]types.User),
		byUsername: make(map[string]int64),
	}
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id int64) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUsername[username]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return r.users[id], nil
}

func (r *MemoryUserRepository) List(_ context.Context) ([]types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]types.User, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b types.User) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return users, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byUsername[user.Username]; exists {
		return types.User{}, ErrConflict
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	r.users[user.ID] = user
	r.byUsername[user.Username] = user.ID
	return user, nil
}

func (r *MemoryUserRepository) Reset(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = make(map[int64]types.User)
	r.byUsername = make(map[string]int64)
	return nil
}

// MemoryBlogRepository keeps blogs in process memory. Ids come from a counter
// that survives Reset.
type MemoryBlogRepository struct {
	mu     sync.RWMutex
	nextID int64
	blogs  map[int64]types.Blog
	order  []int64
}

func NewMemoryBlogRepository() *MemoryBlogRepository {
	return &MemoryBlogRepository{
		blogs: make(map[int64]types.Blog),
	}
}

// List returns every blog ordered by likes, most liked first. The sort is
// stable over creation order, so ties keep the order they were created in.
func (r *MemoryBlogRepository) List(_ context.Context) ([]types.Blog, error) {
	r.mu.RLock()
	blogs := make([]types.Blog, 0, len(r.order))
	for _, id := range r.order {
		blogs = append(blogs, r.blogs[id])
	}
	r.mu.RUnlock()

	slices.SortStableFunc(blogs, func(a, b types.Blog) int {
		return cmp.Compare(b.Likes, a.Likes)
	})
	return blogs, nil
}

func (r *MemoryBlogRepository) Get(_ context.Context, id int64) (types.Blog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	blog, ok := r.blogs[id]
	if !ok {
		return types.Blog{}, ErrNotFound
	}
	return blog, nil
}

func (r *MemoryBlogRepository) Create(_ context.Context, blog types.Blog) (types.Blog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := time.Now()
	blog.ID = r.nextID
	blog.Likes = 0
	blog.CreatedAt = now
	blog.UpdatedAt = now
	r.blogs[blog.ID] = blog
	r.order = append(r.order, blog.ID)
	return blog, nil
}

func (r *MemoryBlogRepository) Update(_ context.Context, blog types.Blog) (types.Blog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.blogs[blog.ID]
	if !ok {
		return types.Blog{}, ErrNotFound
	}
	current.Title = blog.Title
	current.Author = blog.Author
	current.URL = blog.URL
	current.UpdatedAt = time.Now()
	r.blogs[blog.ID] = current
	return current, nil
}

func (r *MemoryBlogRepository) IncrementLikes(_ context.Context, id int64) (types.Blog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	blog, ok := r.blogs[id]
	if !ok {
		return types.Blog{}, ErrNotFound
	}
	blog.Likes++
	blog.UpdatedAt = time.Now()
	r.blogs[id] = blog
	return blog, nil
}

func (r *MemoryBlogRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blogs[id]; !ok {
		return ErrNotFound
	}
	delete(r.blogs, id)
	r.order = slices.DeleteFunc(r.order, func(candidate int64) bool {
		return candidate == id
	})
	return nil
}

func (r *MemoryBlogRepository) Reset(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blogs = make(map[int64]types.Blog)
	r.order = nil
	return nil
}
