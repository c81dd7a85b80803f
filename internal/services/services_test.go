package services

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bloglist/apiserver/internal/auth"
	"github.com/bloglist/apiserver/internal/store"
	"github.com/bloglist/apiserver/types"
)

var ctx = context.Background()

type fixture struct {
	users    *UserService
	blogs    *BlogService
	listing  *ListingService
	reset    *ResetService
	userRepo *store.MemoryUserRepository
	blogRepo *store.MemoryBlogRepository
	sessions *store.MemorySessionStore
}

func newFixture(t *testing.T, events *EventPublisher) fixture {
	t.Helper()

	userRepo := store.NewMemoryUserRepository()
	blogRepo := store.NewMemoryBlogRepository()
	sessions := store.NewMemorySessionStore()

	users := NewUserService(userRepo, sessions, auth.NewTokenIssuer("test-secret", time.Hour))
	users.hashCost = bcrypt.MinCost

	return fixture{
		users:    users,
		blogs:    NewBlogService(blogRepo, users, events),
		listing:  NewListingService(blogRepo, userRepo),
		reset:    NewResetService(blogRepo, userRepo, sessions),
		userRepo: userRepo,
		blogRepo: blogRepo,
		sessions: sessions,
	}
}

// login registers the user and returns an authenticated session.
func (f fixture) login(t *testing.T, name, username, password string) *types.Session {
	t.Helper()

	if _, err := f.users.Register(ctx, name, username, password); err != nil {
		t.Fatalf("register %s: %s", username, err)
	}
	session, err := f.users.Authenticate(ctx, username, password)
	if err != nil {
		t.Fatalf("authenticate %s: %s", username, err)
	}
	return &session
}

func (f fixture) createBlog(t *testing.T, session *types.Session, title string) types.Blog {
	t.Helper()

	blog, err := f.blogs.Create(ctx, session, title, "Autor de Prueba", "http://blogprueba.com")
	if err != nil {
		t.Fatalf("create %q: %s", title, err)
	}
	return blog
}

func (f fixture) like(t *testing.T, id int64, times int) {
	t.Helper()

	for i := 0; i < times; i++ {
		if _, err := f.blogs.ToggleLike(ctx, nil, id); err != nil {
			t.Fatalf("like %d: %s", id, err)
		}
	}
}
