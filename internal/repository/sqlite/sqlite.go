// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without a C toolchain.
//
// Uniqueness invariants (ingredient name+unit, one line per ingredient in a
// recipe, one favorite/cart/subscription edge per pair) live in the schema.
// Constraint violations are translated into apperror values here so two
// racing inserts surface the same way as a detected duplicate.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// defaultListLimit is used when a ListOptions carries no limit.
const defaultListLimit = 20

// DB wraps a sql.DB connection pool and provides repository methods.
// A single *DB implements every interface in internal/repository.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database and runs migrations.
//
// dbPath examples:
//   - "data/foodgram.db"  → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests)
//
// foreign_keys is a per-connection setting in SQLite, so it is passed as a
// DSN pragma and applied to every pooled connection.
func New(dbPath string) (*DB, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	steps := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				email         TEXT NOT NULL UNIQUE,
				username      TEXT NOT NULL UNIQUE,
				first_name    TEXT NOT NULL DEFAULT '',
				last_name     TEXT NOT NULL DEFAULT '',
				password_hash TEXT NOT NULL DEFAULT '',
				avatar        TEXT NOT NULL DEFAULT '',
				is_staff      INTEGER NOT NULL DEFAULT 0,
				is_superuser  INTEGER NOT NULL DEFAULT 0,
				created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
		`},
		{"ingredients", `
			CREATE TABLE IF NOT EXISTS ingredients (
				id               INTEGER PRIMARY KEY AUTOINCREMENT,
				name             TEXT NOT NULL,
				measurement_unit TEXT NOT NULL,
				name_lower       TEXT NOT NULL,
				UNIQUE (name, measurement_unit)
			);
			CREATE INDEX IF NOT EXISTS idx_ingredients_name_lower ON ingredients(name_lower);
		`},
		{"recipes", `
			CREATE TABLE IF NOT EXISTS recipes (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				author_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				name         TEXT NOT NULL,
				text         TEXT NOT NULL DEFAULT '',
				image        TEXT NOT NULL DEFAULT '',
				cooking_time INTEGER NOT NULL CHECK (cooking_time >= 1),
				created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_recipes_created_at ON recipes(created_at);
			CREATE INDEX IF NOT EXISTS idx_recipes_author_id ON recipes(author_id);
		`},
		{"recipe_ingredients", `
			CREATE TABLE IF NOT EXISTS recipe_ingredients (
				recipe_id     INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
				ingredient_id INTEGER NOT NULL REFERENCES ingredients(id) ON DELETE CASCADE,
				amount        INTEGER NOT NULL CHECK (amount >= 1),
				PRIMARY KEY (recipe_id, ingredient_id)
			);
		`},
		{"user_recipe_markers", `
			CREATE TABLE IF NOT EXISTS user_recipe_markers (
				kind       TEXT NOT NULL CHECK (kind IN ('favorite', 'shopping_cart')),
				user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				recipe_id  INTEGER NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (kind, user_id, recipe_id)
			);
			CREATE INDEX IF NOT EXISTS idx_markers_recipe ON user_recipe_markers(recipe_id);
		`},
		{"subscriptions", `
			CREATE TABLE IF NOT EXISTS subscriptions (
				follower_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				author_id   INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (follower_id, author_id),
				CHECK (follower_id <> author_id)
			);
			CREATE INDEX IF NOT EXISTS idx_subscriptions_author ON subscriptions(author_id);
		`},
		{"revoked_tokens", `
			CREATE TABLE IF NOT EXISTS revoked_tokens (
				token_id   TEXT PRIMARY KEY,
				expires_at DATETIME NOT NULL
			);
		`},
	}

	for _, step := range steps {
		if _, err := db.conn.Exec(step.sql); err != nil {
			return fmt.Errorf("creating %s table: %w", step.name, err)
		}
	}

	return nil
}

// constraintCode returns the extended SQLite result code when err is a
// constraint violation.
func constraintCode(err error) (int, bool) {
	var se *sqlitedriver.Error
	if !errors.As(err, &se) {
		return 0, false
	}
	if se.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return 0, false
	}
	return se.Code(), true
}

// isUniqueViolation reports a UNIQUE or PRIMARY KEY collision.
func isUniqueViolation(err error) bool {
	code, ok := constraintCode(err)
	return ok && (code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY)
}

func isCheckViolation(err error) bool {
	code, ok := constraintCode(err)
	return ok && code == sqlite3.SQLITE_CONSTRAINT_CHECK
}

func isForeignKeyViolation(err error) bool {
	code, ok := constraintCode(err)
	return ok && code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

// withTx runs fn inside a transaction, rolling back on error.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// normalizeLimit applies the default page size to an unset limit. Upper
// bounds are the caller's business (handler.Paginator caps at MaxPageSize).
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
