package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

var _ repository.SubscriptionRepository = (*DB)(nil)

// Subscribe inserts a follower → author edge. The CHECK constraint rejects
// self-subscription and the primary key rejects duplicates.
func (db *DB) Subscribe(ctx context.Context, followerID, authorID int64) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO subscriptions (follower_id, author_id, created_at) VALUES (?, ?, ?)`,
		followerID, authorID, time.Now().UTC(),
	)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return apperror.Duplicate("already subscribed to this author")
	case isCheckViolation(err):
		return apperror.Duplicate("cannot subscribe to yourself")
	case isForeignKeyViolation(err):
		return apperror.NotFound("user", authorID)
	default:
		return fmt.Errorf("sqlite: subscribing %d to %d: %w", followerID, authorID, err)
	}
}

func (db *DB) Unsubscribe(ctx context.Context, followerID, authorID int64) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE follower_id = ? AND author_id = ?`,
		followerID, authorID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: unsubscribing %d from %d: %w", followerID, authorID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("subscription", authorID)
	}
	return nil
}

func (db *DB) IsSubscribed(ctx context.Context, followerID, authorID int64) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM subscriptions WHERE follower_id = ? AND author_id = ?)`,
		followerID, authorID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking subscription: %w", err)
	}
	return exists, nil
}

// ListSubscriptions returns the authors followerID follows, ordered by
// username, plus their total count.
func (db *DB) ListSubscriptions(ctx context.Context, followerID int64, opts repository.ListOptions) ([]model.User, int, error) {
	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE follower_id = ?`, followerID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting subscriptions: %w", err)
	}

	limit := normalizeLimit(opts.Limit)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT u.id, u.email, u.username, u.first_name, u.last_name, u.password_hash,
		        u.avatar, u.is_staff, u.is_superuser, u.created_at
		 FROM subscriptions s
		 JOIN users u ON u.id = s.author_id
		 WHERE s.follower_id = ?
		 ORDER BY u.username
		 LIMIT ? OFFSET ?`,
		followerID, limit, max(opts.Offset, 0),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing subscriptions: %w", err)
	}
	defer rows.Close()

	authors, err := collectUsers(rows, limit)
	if err != nil {
		return nil, 0, err
	}
	return authors, total, nil
}
