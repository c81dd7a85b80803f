package auth

import "github.com/bloglist/apiserver/types"

// CanDelete reports whether the session may delete the blog. Only the
// blog's creator may.
func CanDelete(session *types.Session, blog types.Blog) bool {
	return session != nil && session.UserID == blog.CreatorID
}
