package services

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bloglist/apiserver/types"
)

func strPtr(s string) *string { return &s }

func TestCreateRequiresSession(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.blogs.Create(ctx, nil, "Blog de Prueba", "Autor", "http://blogprueba.com"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	blogs, _ := f.blogs.List(ctx)
	if len(blogs) != 0 {
		t.Errorf("expected no blogs, got %d", len(blogs))
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t, nil)
	jhon := f.login(t, "jhon botero", "jhon", "jhon123")

	blog, err := f.blogs.Create(ctx, jhon, " Blog de Prueba ", "Autor de Prueba", "http://blogprueba.com")
	if err != nil {
		t.Fatalf("create: %s", err)
	}
	if blog.ID == 0 || blog.Likes != 0 || blog.CreatorID != jhon.UserID {
		t.Errorf("unexpected blog %+v", blog)
	}
	if blog.Title != "Blog de Prueba" {
		t.Errorf("expected trimmed title, got %q", blog.Title)
	}

	got, err := f.blogs.Get(ctx, blog.ID)
	if err != nil {
		t.Fatalf("get: %s", err)
	}
	if diff := cmp.Diff(blog, got); diff != "" {
		t.Errorf("stored blog mismatch (-want +got):\n%s", diff)
	}

	if _, err := f.blogs.Create(ctx, jhon, "", "Autor", "http://x.com"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing title: expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.blogs.Create(ctx, jhon, "Title", "Autor", "  "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing url: expected ErrInvalidInput, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	f := newFixture(t, nil)
	jhon := f.login(t, "jhon botero", "jhon", "jhon123")
	blog := f.createBlog(t, jhon, "Blog de Prueba")
	f.like(t, blog.ID, 2)

	updated, err := f.blogs.Update(ctx, nil, blog.ID, types.BlogPatch{Title: strPtr("Blog de Prueba123")})
	if err != nil {
		t.Fatalf("update: %s", err)
	}
	if updated.Title != "Blog de Prueba123" {
		t.Errorf("expected new title, got %q", updated.Title)
	}
	if updated.Author != blog.Author || updated.URL != blog.URL {
		t.Errorf("unsupplied fields changed: %+v", updated)
	}
	if updated.Likes != 2 || updated.CreatorID != jhon.UserID {
		t.Errorf("update touched likes or creator: %+v", updated)
	}

	unchanged, err := f.blogs.Update(ctx, nil, blog.ID, types.BlogPatch{})
	if err != nil {
		t.Fatalf("empty update: %s", err)
	}
	if unchanged.Title != "Blog de Prueba123" {
		t.Errorf("empty patch changed the blog: %+v", unchanged)
	}

	if _, err := f.blogs.Update(ctx, nil, blog.ID, types.BlogPatch{URL: strPtr(" ")}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank url: expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.blogs.Update(ctx, nil, 9999, types.BlogPatch{Title: strPtr("x")}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: expected ErrNotFound, got %v", err)
	}
}

func TestUpdateIsNotRestrictedToCreator(t *testing.T) {
	f := newFixture(t, nil)
	jhon := f.login(t, "jhon botero", "jhon", "jhon123")
	other := f.login(t, "other user", "other", "other123")
	blog := f.createBlog(t, jhon, "Blog de Prueba")

	updated, err := f.blogs.Update(ctx, other, blog.ID, types.BlogPatch{Author: strPtr("Autor de Prueba456")})
	if err != nil {
		t.Fatalf("update by non-creator: %s", err)
	}
	if updated.Author != "Autor de Prueba456" {
		t.Errorf("expected author to change, got %q", updated.Author)
	}
}

func TestDeleteOnlyByCreator(t *testing.T) {
	f := newFixture(t, nil)
	jhon := f.login(t, "jhon botero", "jhon", "jhon123")
	other := f.login(t, "other user", "other", "other123")
	blog := f.createBlog(t, jhon, "Blog de Prueba")

	if err := f.blogs.Delete(ctx, other, blog.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.blogs.Get(ctx, blog.ID); err != nil {
		t.Fatalf("blog must survive a forbidden delete: %s", err)
	}

	if err := f.blogs.Delete(ctx, jhon, blog.ID); err != nil {
		t.Fatalf("delete by creator: %s", err)
	}

	if _, err := f.blogs.Get(ctx, blog.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get: expected ErrNotFound, got %v", err)
	}
	if _, err := f.blogs.Update(ctx, jhon, blog.ID, types.BlogPatch{Title: strPtr("again")}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update: expected ErrNotFound, got %v", err)
	}
	if _, err := f.blogs.ToggleLike(ctx, jhon, blog.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("like: expected ErrNotFound, got %v", err)
	}
	if err := f.blogs.Delete(ctx, jhon, blog.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteChecksSessionFirst(t *testing.T) {
	f := newFixture(t, nil)
	jhon := f.login(t, "jhon botero", "jhon", "jhon123")
	blog := f.createBlog(t, jhon, "Blog de Prueba")

	if err := f.blogs.Delete(ctx, nil, blog.ID); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("existing blog: expected ErrUnauthenticated, got %v", err)
	}
	if err := f.blogs.Delete(ctx, nil, 9999); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("unknown blog: expected ErrUnauthenticated, got %v", err)
	}
	if err := f.blogs.Delete(ctx, jhon, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown blog with session: expected ErrNotFound, got %v", err)
	}
}

func TestLoggedOutSessionCannotCreateOrDelete(t *testing.T) {
	f := newFixture(t, nil)
	jhon := f.login(t, "jhon botero", "jhon", "jhon123")
	blog := f.createBlog(t, jhon, "Blog de Prueba")

	if err := f.users.Logout(ctx, jhon); err != nil {
		t.Fatalf("logout: %s", err)
	}

	if _, err := f.blogs.Create(ctx, jhon, "after logout", "Autor", "http://blogprueba.com"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("create: expected ErrUnauthenticated, got %v", err)
	}
	if err := f.blogs.Delete(ctx, jhon, blog.ID); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("delete: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := f.blogs.Get(ctx, blog.ID); err != nil {
		t.Errorf("blog must survive a rejected delete: %s", err)
	}
}

func TestResetSessionCannotCreate(t *testing.T) {
	f := newFixture(t, nil)
	jhon := f.login(t, "jhon botero", "jhon", "jhon123")

	if err := f.reset.Reset(ctx); err != nil {
		t.Fatalf("reset: %s", err)
	}

	if _, err := f.blogs.Create(ctx, jhon, "ghost", "Autor", "http://blogprueba.com"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	blogs, err := f.blogs.List(ctx)
	if err != nil {
		t.Fatalf("list: %s", err)
	}
	if len(blogs) != 0 {
		t.Errorf("expected no blogs after a rejected create, got %+v", blogs)
	}
}

func TestSessionOfRemovedUserCannotCreate(t *testing.T) {
	f := newFixture(t, nil)
	jhon := f.login(t, "jhon botero", "jhon", "jhon123")

	// Sessions survive, the user does not.
	if err := f.userRepo.Reset(ctx); err != nil {
		t.Fatalf("reset users: %s", err)
	}

	if _, err := f.blogs.Create(ctx, jhon, "orphan", "Autor", "http://blogprueba.com"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestForgedSessionCannotCreate(t *testing.T) {
	f := newFixture(t, nil)
	jhon := f.login(t, "jhon botero", "jhon", "jhon123")
	other := f.login(t, "other user", "other", "other123")

	forged := &types.Session{ID: jhon.ID, UserID: other.UserID}
	if _, err := f.blogs.Create(ctx, forged, "forged", "Autor", "http://blogprueba.com"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestToggleLikeIncrementsOnce(t *testing.T) {
	f := newFixture(t, nil)
	jhon := f.login(t, "jhon botero", "jhon", "jhon123")
	blog := f.createBlog(t, jhon, "Blog de Prueba")

	for want := int64(1); want <= 3; want++ {
		liked, err := f.blogs.ToggleLike(ctx, jhon, blog.ID)
		if err != nil {
			t.Fatalf("like: %s", err)
		}
		if liked.Likes != want {
			t.Errorf("expected %d likes, got %d", want, liked.Likes)
		}
	}
}

func TestConcurrentLikes(t *testing.T) {
	f := newFixture(t, nil)
	jhon := f.login(t, "jhon botero", "jhon", "jhon123")
	blog := f.createBlog(t, jhon, "contended")

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.blogs.ToggleLike(ctx, nil, blog.ID); err != nil {
				t.Errorf("like: %s", err)
			}
		}()
	}
	wg.Wait()

	got, err := f.blogs.Get(ctx, blog.ID)
	if err != nil {
		t.Fatalf("get: %s", err)
	}
	if got.Likes != n {
		t.Errorf("expected %d likes, got %d", n, got.Likes)
	}
}

func TestDeleteRacingLikes(t *testing.T) {
	f := newFixture(t, nil)
	jhon := f.login(t, "jhon botero", "jhon", "jhon123")
	blog := f.createBlog(t, jhon, "short lived")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.blogs.ToggleLike(ctx, nil, blog.ID); err != nil && !errors.Is(err, ErrNotFound) {
				t.Errorf("like: unexpected error %s", err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := f.blogs.Delete(ctx, jhon, blog.ID); err != nil {
			t.Errorf("delete: %s", err)
		}
	}()
	wg.Wait()

	if _, err := f.blogs.ToggleLike(ctx, nil, blog.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	blogs, _ := f.blogs.List(ctx)
	if len(blogs) != 0 {
		t.Errorf("expected deleted blog to be gone from the listing, got %d blogs", len(blogs))
	}
}
