package db

import (
	"context"
	"database/sql"

	"github.com/streamspace/fleetconsole/internal/models"
)

// UserDB wraps user-table queries.
type UserDB struct {
	db *Database
}

func NewUserDB(database *Database) *UserDB {
	return &UserDB{db: database}
}

func (u *UserDB) Create(ctx context.Context, user *models.User) error {
	_, err := u.db.DB().ExecContext(ctx,
		`INSERT INTO users (id, email, role, created_at, updated_at) VALUES ($1,$2,$3,$4,$5)`,
		user.ID, user.Email, user.Role, user.CreatedAt, user.UpdatedAt,
	)
	return err
}

func (u *UserDB) Get(ctx context.Context, id string) (*models.User, error) {
	row := u.db.DB().QueryRowContext(ctx,
		`SELECT id, email, role, created_at, updated_at FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (u *UserDB) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := u.db.DB().QueryRowContext(ctx,
		`SELECT id, email, role, created_at, updated_at FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (u *UserDB) List(ctx context.Context) ([]*models.User, error) {
	rows, err := u.db.DB().QueryContext(ctx,
		`SELECT id, email, role, created_at, updated_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.Email, &user.Role, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

func (u *UserDB) UpdateRole(ctx context.Context, id string, role models.Role) error {
	_, err := u.db.DB().ExecContext(ctx,
		`UPDATE users SET role = $1, updated_at = now() WHERE id = $2`, role, id)
	return err
}

func (u *UserDB) Delete(ctx context.Context, id string) error {
	_, err := u.db.DB().ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	if err := row.Scan(&user.ID, &user.Email, &user.Role, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}
