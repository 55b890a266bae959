package db

import (
	"context"
	"database/sql"

	"github.com/streamspace/fleetconsole/internal/models"
)

// APIKeyDB wraps api_keys queries. Lookups join users so the caller gets the
// owning user's role in one round trip — every authenticated request needs
// both.
type APIKeyDB struct {
	db *Database
}

func NewAPIKeyDB(database *Database) *APIKeyDB {
	return &APIKeyDB{db: database}
}

func (a *APIKeyDB) Create(ctx context.Context, key *models.ApiKey) error {
	_, err := a.db.DB().ExecContext(ctx,
		`INSERT INTO api_keys (id, user_id, key_hash, name, created_at, expires_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		key.ID, key.UserID, key.KeyHash, key.Name, key.CreatedAt, key.ExpiresAt,
	)
	return err
}

// FindByHash returns the key and its owning user, or (nil, nil, nil) if no
// key matches the hash.
func (a *APIKeyDB) FindByHash(ctx context.Context, hash string) (*models.ApiKey, *models.User, error) {
	row := a.db.DB().QueryRowContext(ctx, `
		SELECT k.id, k.user_id, k.key_hash, k.name, k.created_at, k.expires_at,
		       u.id, u.email, u.role, u.created_at, u.updated_at
		FROM api_keys k JOIN users u ON u.id = k.user_id
		WHERE k.key_hash = $1`, hash)

	key := &models.ApiKey{}
	user := &models.User{}
	err := row.Scan(
		&key.ID, &key.UserID, &key.KeyHash, &key.Name, &key.CreatedAt, &key.ExpiresAt,
		&user.ID, &user.Email, &user.Role, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return key, user, nil
}

func (a *APIKeyDB) ListForUser(ctx context.Context, userID string) ([]*models.ApiKey, error) {
	rows, err := a.db.DB().QueryContext(ctx,
		`SELECT id, user_id, key_hash, name, created_at, expires_at FROM api_keys WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ApiKey
	for rows.Next() {
		key := &models.ApiKey{}
		if err := rows.Scan(&key.ID, &key.UserID, &key.KeyHash, &key.Name, &key.CreatedAt, &key.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

func (a *APIKeyDB) Revoke(ctx context.Context, id string) error {
	_, err := a.db.DB().ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	return err
}

// ListAll returns every issued key fleet-wide, for the admin key-audit view.
func (a *APIKeyDB) ListAll(ctx context.Context) ([]*models.ApiKey, error) {
	rows, err := a.db.DB().QueryContext(ctx,
		`SELECT id, user_id, key_hash, name, created_at, expires_at FROM api_keys ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ApiKey
	for rows.Next() {
		key := &models.ApiKey{}
		if err := rows.Scan(&key.ID, &key.UserID, &key.KeyHash, &key.Name, &key.CreatedAt, &key.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

// Get fetches a single key by id, for rotate/revoke ownership checks.
func (a *APIKeyDB) Get(ctx context.Context, id string) (*models.ApiKey, error) {
	row := a.db.DB().QueryRowContext(ctx,
		`SELECT id, user_id, key_hash, name, created_at, expires_at FROM api_keys WHERE id = $1`, id)
	key := &models.ApiKey{}
	err := row.Scan(&key.ID, &key.UserID, &key.KeyHash, &key.Name, &key.CreatedAt, &key.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}
