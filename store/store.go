// Package store persists the ontology and the entity graph in SQLite. Every
// record version carries temporal intervals as fixed-width timestamp strings,
// so interval predicates compile to plain lexicographic comparisons. Mutations
// run close-old/open-new inside one transaction; the affected-row count of the
// close UPDATE is the race detector.
package store

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/logger"
	"github.com/stratumdb/stratum/ontology"
	"github.com/stratumdb/stratum/temporal"
)

// Store is the SQLite-backed ontology and entity store.
type Store struct {
	db       *sql.DB
	log      *zap.SugaredLogger
	resolver *ontology.Resolver
}

// NewStore wraps an open database. A nil log falls back to the global logger.
func NewStore(db *sql.DB, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = logger.Named("store")
	}
	s := &Store{db: db, log: log}
	// Local-only resolution until a fetching resolver is attached.
	s.resolver = ontology.NewResolver(s, nil, nil, 0)
	return s
}

// UseResolver replaces the store's type resolver, typically with one wired to
// a remote fetcher. Entity writes resolve and validate through it.
func (s *Store) UseResolver(r *ontology.Resolver) {
	s.resolver = r
}

// DB exposes the underlying handle for maintenance commands.
func (s *Store) DB() *sql.DB {
	return s.db
}

// withTx runs fn inside one transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Warnw("rollback failed", logger.FieldError, rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

// intervalFrom rebuilds a half-open interval from its stored column pair.
func intervalFrom(start string, end sql.NullString) (temporal.Interval, error) {
	startTS, err := temporal.Parse(start)
	if err != nil {
		return temporal.Interval{}, err
	}
	if !end.Valid {
		return temporal.NewOpenInterval(startTS), nil
	}
	endTS, err := temporal.Parse(end.String)
	if err != nil {
		return temporal.Interval{}, err
	}
	return temporal.NewInterval(temporal.Inclusive(startTS), temporal.Exclusive(endTS))
}

// intervalColumns decomposes an interval into its stored column pair.
func intervalColumns(iv temporal.Interval) (start string, end sql.NullString) {
	start = iv.Start.Limit().String()
	if !iv.IsOpen() {
		end = sql.NullString{String: iv.End.Limit().String(), Valid: true}
	}
	return start, end
}

// pinnedClause is the SQL predicate selecting rows whose [start, end) interval
// contains an instant; bind the instant twice.
const pinnedClause = "(%[1]s <= ? AND (%[2]s IS NULL OR %[2]s > ?))"
