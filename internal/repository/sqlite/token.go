package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/foodgram/internal/repository"
)

var _ repository.TokenRepository = (*DB)(nil)

// RevokeToken records a token id as revoked. Rows past their expiry are
// purged on the way in; an expired token fails validation anyway.
func (db *DB) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, time.Now().UTC()); err != nil {
		return fmt.Errorf("sqlite: purging revoked tokens: %w", err)
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO revoked_tokens (token_id, expires_at) VALUES (?, ?)
		 ON CONFLICT (token_id) DO NOTHING`,
		tokenID, expiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: revoking token: %w", err)
	}
	return nil
}

func (db *DB) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_id = ?)`, tokenID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking revoked token: %w", err)
	}
	return exists, nil
}
