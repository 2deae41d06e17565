package store

import (
	"context"

	"github.com/mattn/go-sqlite3"

	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/logger"
	"github.com/stratumdb/stratum/provenance"
)

const errKindAccount = "account"

// InsertAccountID registers an account so it can own records. Account rows
// are referenced by entity ownership and never versioned.
func (s *Store) InsertAccountID(ctx context.Context, actor provenance.AccountID, id provenance.AccountID) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO accounts (account_id, created_at) VALUES (?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))",
		id.String())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return errors.WithStack(&errors.AlreadyExistsError{Kind: errKindAccount, ID: id.String()})
		}
		return errors.Wrapf(err, "inserting account %s", id)
	}
	s.log.Infow("registered account",
		logger.FieldActorID, actor.String(),
		"account_id", id.String(),
	)
	return nil
}

// AccountExists reports whether the account is registered.
func (s *Store) AccountExists(ctx context.Context, id provenance.AccountID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM accounts WHERE account_id = ?)", id.String()).Scan(&exists)
	if err != nil {
		return false, errors.Wrapf(err, "checking account %s", id)
	}
	return exists, nil
}
