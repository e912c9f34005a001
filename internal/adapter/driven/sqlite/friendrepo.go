package sqlite

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/clearsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.FriendListStore = (*FriendRepo)(nil)

// FriendRepo is the SQLite implementation of the FriendListStore port.
type FriendRepo struct {
	db *DB
}

// NewFriendRepo creates a FriendRepo.
func NewFriendRepo(db *DB) *FriendRepo {
	return &FriendRepo{db: db}
}

// List returns all tracked friend account names in insertion order.
func (r *FriendRepo) List(ctx context.Context) ([]string, error) {
	const query = `SELECT account FROM friends ORDER BY added_at, account`
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	var accounts []string
	for rows.Next() {
		var account string
		if err := rows.Scan(&account); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friends: %w", err)
	}

	return accounts, nil
}

// Add stores a friend account name. Adding an existing name is a no-op.
func (r *FriendRepo) Add(ctx context.Context, account string) error {
	const query = `INSERT OR IGNORE INTO friends (account) VALUES (?)`
	if _, err := r.db.Writer.ExecContext(ctx, query, account); err != nil {
		return fmt.Errorf("add friend %q: %w", account, err)
	}
	return nil
}

// Remove deletes a friend account name. Removing an unknown name is not an
// error.
func (r *FriendRepo) Remove(ctx context.Context, account string) error {
	const query = `DELETE FROM friends WHERE account = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, account); err != nil {
		return fmt.Errorf("remove friend %q: %w", account, err)
	}
	return nil
}
