package types

import "time"

// Session is the authenticated principal attached to a request.
// It is created by a successful login and destroyed by logout.
type Session struct {
	// ID identifies the server-side session record. It is carried in the
	// token as its jti claim.
	ID string `json:"id"`

	// UserID references the authenticated user.
	UserID int64 `json:"user_id"`

	// Username and Name are copied from the user at login time.
	Username string `json:"username"`
	Name     string `json:"name"`

	// Token is the signed bearer token handed to the client. It is only
	// populated on the session returned by login.
	Token string `json:"token,omitempty"`

	// ExpiresAt is when the session stops being accepted.
	ExpiresAt time.Time `json:"expires_at"`
}
