package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bloglist/apiserver/types"
)

const blogColumns = `id, title, author, url, likes, creator_id, created_at, updated_at`

// BlogRepository handles persistence for blogs.
type BlogRepository struct {
	db *sql.DB
}

func NewBlogRepository(db *sql.DB) *BlogRepository {
	return &BlogRepository{db: db}
}

// List returns every blog ordered by likes, most liked first. Blogs with the
// same number of likes keep their creation order.
func (r *BlogRepository) List(ctx context.Context) ([]types.Blog, error) {
	const query = `
		SELECT ` + blogColumns + `
		FROM blogs
		ORDER BY likes DESC, id ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blogs := make([]types.Blog, 0)
	for rows.Next() {
		blog, err := scanBlog(rows)
		if err != nil {
			return nil, err
		}
		blogs = append(blogs, blog)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return blogs, nil
}

func (r *BlogRepository) Get(ctx context.Context, id int64) (types.Blog, error) {
	const query = `
		SELECT ` + blogColumns + `
		FROM blogs
		WHERE id = $1`
	return scanBlogRow(r.db.QueryRowContext(ctx, query, id))
}

func (r *BlogRepository) Create(ctx context.Context, blog types.Blog) (types.Blog, error) {
	now := time.Now()
	blog.CreatedAt = now
	blog.UpdatedAt = now
	blog.Likes = 0

	const query = `
		INSERT INTO blogs (title, author, url, likes, creator_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		blog.Title,
		blog.Author,
		blog.URL,
		blog.Likes,
		blog.CreatorID,
		blog.CreatedAt,
		blog.UpdatedAt,
	).Scan(&blog.ID); err != nil {
		return types.Blog{}, err
	}
	return blog, nil
}

// Update writes the blog's metadata. Likes and creator are left untouched.
func (r *BlogRepository) Update(ctx context.Context, blog types.Blog) (types.Blog, error) {
	const query = `
		UPDATE blogs
		SET title = $1,
			author = $2,
			url = $3,
			updated_at = $4
		WHERE id = $5
		RETURNING ` + blogColumns
	return scanBlogRow(r.db.QueryRowContext(
		ctx,
		query,
		blog.Title,
		blog.Author,
		blog.URL,
		time.Now(),
		blog.ID,
	))
}

// IncrementLikes adds one like in a single statement, so concurrent callers
// never lose an increment.
func (r *BlogRepository) IncrementLikes(ctx context.Context, id int64) (types.Blog, error) {
	const query = `
		UPDATE blogs
		SET likes = likes + 1,
			updated_at = $1
		WHERE id = $2
		RETURNING ` + blogColumns
	return scanBlogRow(r.db.QueryRowContext(ctx, query, time.Now(), id))
}

func (r *BlogRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM blogs WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Reset removes every blog. The id sequence is kept, so ids are never reused.
func (r *BlogRepository) Reset(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM blogs`)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlog(row rowScanner) (types.Blog, error) {
	var blog types.Blog
	err := row.Scan(
		&blog.ID,
		&blog.Title,
		&blog.Author,
		&blog.URL,
		&blog.Likes,
		&blog.CreatorID,
		&blog.CreatedAt,
		&blog.UpdatedAt,
	)
	return blog, err
}

func scanBlogRow(row *sql.Row) (types.Blog, error) {
	blog, err := scanBlog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Blog{}, ErrNotFound
		}
		return types.Blog{}, err
	}
	return blog, nil
}
