package repository

import (
	"context"
	"errors"

	circle "github.com/Behappytocode/circle/internal/pkg/circle/domain"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrNameTaken          = errors.New("auth: display name already taken")
	ErrInvalidToken       = errors.New("auth: invalid or expired token")
)

// Auth is the data store's credential subsystem. The core only consumes
// the resulting (accountID, authenticated) fact; how credentials are
// verified and tokens stored is the adapter's business.
type Auth interface {
	// SignUp registers a new identity. The created account starts pending.
	SignUp(ctx context.Context, displayName, password string) (circle.Account, error)

	// SignIn verifies credentials and mints a session token.
	SignIn(ctx context.Context, displayName, password string) (accountID, token string, err error)

	// SignOut invalidates a session token.
	SignOut(ctx context.Context, token string) error

	// Verify resolves a session token to its account id;
	// ErrInvalidToken when the session is unknown or expired.
	Verify(ctx context.Context, token string) (accountID string, err error)
}
