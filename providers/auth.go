package providers

import "context"

// User is the authenticated principal as seen by the core.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AuthProvider abstracts the external authentication service.
type AuthProvider interface {
	// CurrentUser resolves the user for a bearer token. Returns nil when the
	// token is unknown or expired.
	CurrentUser(ctx context.Context, token string) (*User, error)

	// Login authenticates an email and returns a bearer token.
	Login(ctx context.Context, email string) (string, error)

	// Logout invalidates a token. Unknown tokens are ignored.
	Logout(ctx context.Context, token string) error
}
