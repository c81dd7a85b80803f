package types

import "time"

// Blog represents a link to an external blog post shared by a user.
type Blog struct {
	// ID is the unique identifier of the blog. It is assigned at creation
	// and never reused, even after the blog is deleted.
	ID int64 `json:"id" db:"id"`

	// Title is the human-readable title of the post.
	Title string `json:"title" db:"title"`

	// Author is the name of the person who wrote the post.
	Author string `json:"author" db:"author"`

	// URL points at the post itself.
	URL string `json:"url" db:"url"`

	// Likes is the number of times the blog was liked. It starts at zero
	// and only ever grows.
	Likes int64 `json:"likes" db:"likes"`

	// CreatorID references the user who created the blog. Only that user
	// may delete it.
	CreatorID int64 `json:"creator_id" db:"creator_id"`

	// CreatedAt is the timestamp at which the blog was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent metadata edit or like.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// BlogPatch carries a partial metadata edit. Nil fields are left unchanged.
type BlogPatch struct {
	Title  *string `json:"title,omitempty"`
	Author *string `json:"author,omitempty"`
	URL    *string `json:"url,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p BlogPatch) Empty() bool {
	return p.Title == nil && p.Author == nil && p.URL == nil
}

// Apply returns a copy of blog with the supplied fields replaced.
func (p BlogPatch) Apply(blog Blog) Blog {
	if p.Title != nil {
		blog.Title = *p.Title
	}
	if p.Author != nil {
		blog.Author = *p.Author
	}
	if p.URL != nil {
		blog.URL = *p.URL
	}
	return blog
}

// BlogListing is a blog decorated with its creator, as shown in listings.
type BlogListing struct {
	Blog
	Creator UserSummary `json:"creator"`
}
