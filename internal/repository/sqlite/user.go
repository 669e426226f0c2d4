package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, username, first_name, last_name, password_hash,
	avatar, is_staff, is_superuser, created_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, u *model.User) error {
	return row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.PasswordHash,
		&u.Avatar,
		&u.IsStaff,
		&u.IsSuperuser,
		&u.CreatedAt,
	)
}

// CreateUser inserts a new account and fills in its ID and CreatedAt.
// A taken email or username comes back as apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.CreatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (email, username, first_name, last_name, password_hash,
		                    avatar, is_staff, is_superuser, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Email,
		user.Username,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.Avatar,
		user.IsStaff,
		user.IsSuperuser,
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: creating user %q: %w", user.Username, err)
	}

	user.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading user id: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id), &u)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return &u, nil
}

// GetUserByEmail looks an account up by its login identifier.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email), &u)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return &u, nil
}

func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username), &u)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlite: getting user by username: %w", err)
	}
	return &u, nil
}

// ListUsers returns one page of users ordered by username, plus the total count.
func (db *DB) ListUsers(ctx context.Context, opts repository.ListOptions) ([]model.User, int, error) {
	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting users: %w", err)
	}

	limit := normalizeLimit(opts.Limit)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 ORDER BY username
		 LIMIT ? OFFSET ?`,
		limit, max(opts.Offset, 0),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users, err := collectUsers(rows, limit)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func collectUsers(rows *sql.Rows, capacity int) ([]model.User, error) {
	users := make([]model.User, 0, capacity)
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}

// UpdatePassword replaces the stored bcrypt hash.
func (db *DB) UpdatePassword(ctx context.Context, id int64, hash string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("sqlite: updating password for user %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// SetAvatar swaps the avatar key inside a transaction so the returned
// previous key is exactly the one that was overwritten.
func (db *DB) SetAvatar(ctx context.Context, id int64, avatar string) (string, error) {
	var previous string
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT avatar FROM users WHERE id = ?`, id).Scan(&previous)
		if err != nil {
			if err == sql.ErrNoRows {
				return apperror.NotFound("user", id)
			}
			return fmt.Errorf("sqlite: reading avatar for user %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET avatar = ? WHERE id = ?`, avatar, id); err != nil {
			return fmt.Errorf("sqlite: setting avatar for user %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return previous, nil
}

// AvatarKeys returns every non-empty avatar key, for the orphan sweep.
func (db *DB) AvatarKeys(ctx context.Context) ([]string, error) {
	return db.stringColumn(ctx, `SELECT avatar FROM users WHERE avatar <> ''`)
}

func (db *DB) stringColumn(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying keys: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite: scanning key: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating keys: %w", err)
	}
	return out, nil
}
