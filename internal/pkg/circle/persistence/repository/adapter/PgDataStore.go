package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	circle "github.com/Behappytocode/circle/internal/pkg/circle/domain"
	repository "github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/port"
)

// PgDataStore implements the DataStore port against PostgreSQL.
type PgDataStore struct {
	pool *pgxpool.Pool
}

func NewPgDataStore(pool *pgxpool.Pool) *PgDataStore {
	return &PgDataStore{pool: pool}
}

var _ repository.DataStore = (*PgDataStore)(nil)

const accountColumns = "id::text, display_name, avatar_url, status, is_admin, updated_at"

func (r *PgDataStore) Account(ctx context.Context, id string) (circle.Account, error) {
	if r == nil || r.pool == nil {
		return circle.Account{}, errors.New("PgDataStore: nil pool")
	}
	row := r.pool.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = $1::uuid", id)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return circle.Account{}, repository.ErrNotFound
	}
	return a, err
}

func (r *PgDataStore) ApprovedAccounts(ctx context.Context, excludeID string) ([]circle.Account, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgDataStore: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE status = $1 AND id <> $2::uuid
		ORDER BY created_at ASC
	`, circle.StatusApproved, excludeID)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func (r *PgDataStore) AccountsByStatus(ctx context.Context, statuses ...circle.Status) ([]circle.Account, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgDataStore: nil pool")
	}
	if len(statuses) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE status = ANY($1)
		ORDER BY created_at ASC
	`, names)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func (r *PgDataStore) SetAccountStatus(ctx context.Context, id string, status circle.Status) error {
	if r == nil || r.pool == nil {
		return errors.New("PgDataStore: nil pool")
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET status = $2, updated_at = now()
		WHERE id = $1::uuid
	`, id, status)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *PgDataStore) MemberGroups(ctx context.Context, accountID string) ([]circle.Group, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgDataStore: nil pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT g.id::text, g.name, g.created_by::text, g.created_at
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.account_id = $1::uuid
		ORDER BY g.created_at ASC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []circle.Group
	for rows.Next() {
		var g circle.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedBy, &g.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *PgDataStore) ThreadMessages(ctx context.Context, self string, t circle.Thread) ([]circle.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("PgDataStore: nil pool")
	}
	const messageSelect = `
		SELECT m.id::text, m.sender_id::text, m.receiver_id::text, m.group_id::text,
		       m.body, m.image_url, m.audio_url, m.created_at, a.display_name
		FROM messages m
		JOIN accounts a ON a.id = m.sender_id
	`
	var (
		rows pgx.Rows
		err  error
	)
	switch t.Kind {
	case circle.ThreadGroup:
		rows, err = r.pool.Query(ctx, messageSelect+`
			WHERE m.group_id = $1::uuid
			ORDER BY m.created_at ASC, m.id ASC
		`, t.ID)
	case circle.ThreadDirect:
		rows, err = r.pool.Query(ctx, messageSelect+`
			WHERE (m.sender_id = $1::uuid AND m.receiver_id = $2::uuid)
			   OR (m.sender_id = $2::uuid AND m.receiver_id = $1::uuid)
			ORDER BY m.created_at ASC, m.id ASC
		`, self, t.ID)
	default:
		return nil, fmt.Errorf("PgDataStore: unknown thread kind %q", t.Kind)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []circle.Message
	for rows.Next() {
		var m circle.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.GroupID,
			&m.Body, &m.ImageURL, &m.AudioURL, &m.CreatedAt, &m.SenderName); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *PgDataStore) InsertMessage(ctx context.Context, m circle.Message) error {
	if r == nil || r.pool == nil {
		return errors.New("PgDataStore: nil pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, group_id, body, image_url, audio_url, created_at)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4::uuid, $5, $6, $7, $8)
	`, m.ID, m.SenderID, m.ReceiverID, m.GroupID, m.Body, m.ImageURL, m.AudioURL, m.CreatedAt)
	return err
}

func (r *PgDataStore) PurgeAccount(ctx context.Context, id string) error {
	if r == nil || r.pool == nil {
		return errors.New("PgDataStore: nil pool")
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, q := range []string{
		"DELETE FROM messages WHERE sender_id = $1::uuid OR receiver_id = $1::uuid",
		"DELETE FROM group_members WHERE account_id = $1::uuid",
		"DELETE FROM credentials WHERE account_id = $1::uuid",
		"DELETE FROM accounts WHERE id = $1::uuid",
	} {
		if _, err := tx.Exec(ctx, q, id); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func scanAccount(row pgx.Row) (circle.Account, error) {
	var a circle.Account
	err := row.Scan(&a.ID, &a.DisplayName, &a.AvatarURL, &a.Status, &a.IsAdmin, &a.UpdatedAt)
	return a, err
}

func collectAccounts(rows pgx.Rows) ([]circle.Account, error) {
	defer rows.Close()
	var accounts []circle.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
