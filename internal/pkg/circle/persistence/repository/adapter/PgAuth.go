package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	cacheport "github.com/Behappytocode/circle/internal/infrastructure/cache/port"
	circle "github.com/Behappytocode/circle/internal/pkg/circle/domain"
	repository "github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/port"
)

const sessionTTL = 24 * time.Hour

// PgAuth implements the Auth port: bcrypt-hashed credentials in
// PostgreSQL, session tokens in the cache.
type PgAuth struct {
	pool  *pgxpool.Pool
	cache cacheport.Cache
}

func NewPgAuth(pool *pgxpool.Pool, cache cacheport.Cache) *PgAuth {
	return &PgAuth{pool: pool, cache: cache}
}

var _ repository.Auth = (*PgAuth)(nil)

func (a *PgAuth) SignUp(ctx context.Context, displayName, password string) (circle.Account, error) {
	if displayName == "" || password == "" {
		return circle.Account{}, repository.ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return circle.Account{}, fmt.Errorf("auth: hash password: %w", err)
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return circle.Account{}, err
	}
	defer tx.Rollback(ctx)

	var acct circle.Account
	err = tx.QueryRow(ctx, `
		INSERT INTO accounts (display_name, status)
		VALUES ($1, $2)
		RETURNING id::text, display_name, avatar_url, status, is_admin, updated_at
	`, displayName, circle.StatusPending).Scan(
		&acct.ID, &acct.DisplayName, &acct.AvatarURL, &acct.Status, &acct.IsAdmin, &acct.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return circle.Account{}, repository.ErrNameTaken
		}
		return circle.Account{}, err
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO credentials (account_id, password_hash) VALUES ($1::uuid, $2)",
		acct.ID, string(hash)); err != nil {
		return circle.Account{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return circle.Account{}, err
	}
	return acct, nil
}

func (a *PgAuth) SignIn(ctx context.Context, displayName, password string) (string, string, error) {
	var (
		accountID string
		hash      string
	)
	err := a.pool.QueryRow(ctx, `
		SELECT c.account_id::text, c.password_hash
		FROM credentials c
		JOIN accounts ac ON ac.id = c.account_id
		WHERE ac.display_name = $1
	`, displayName).Scan(&accountID, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", repository.ErrInvalidCredentials
	}
	if err != nil {
		return "", "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", "", repository.ErrInvalidCredentials
	}

	token := uuid.NewString()
	if err := a.cache.Set(ctx, sessionKey(token), accountID, sessionTTL); err != nil {
		return "", "", fmt.Errorf("auth: store session: %w", err)
	}
	return accountID, token, nil
}

func (a *PgAuth) SignOut(ctx context.Context, token string) error {
	_, err := a.cache.Del(ctx, sessionKey(token))
	return err
}

func (a *PgAuth) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", repository.ErrInvalidToken
	}
	accountID, err := a.cache.Get(ctx, sessionKey(token))
	if errors.Is(err, cacheport.ErrMiss) {
		return "", repository.ErrInvalidToken
	}
	if err != nil {
		return "", err
	}
	return accountID, nil
}

func sessionKey(token string) string {
	return "session:" + token
}
