package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/flashbots/river/negotiation"
)

// sqlQueries holds the dialect-specific statements of a SQL-backed store.
type sqlQueries struct {
	insert string
	load   string
	update string
}

// sqlStore persists the fixed-size session record in one row per
// negotiation. Ids are stored as the bit pattern of a signed 64-bit integer
// since neither driver accepts uint64 values above math.MaxInt64.
type sqlStore struct {
	db *sql.DB
	q  sqlQueries
}

// Create implements negotiation.Store.
func (s *sqlStore) Create(ctx context.Context, sess *negotiation.Session) error {
	rec, err := sess.MarshalBinary()
	if err != nil {
		return err
	}
	addr := sess.ID.Address()

	res, err := s.db.ExecContext(ctx, s.q.insert, int64(sess.ID), addr[:], rec)
	if err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}
	if n == 0 {
		return negotiation.ErrDuplicateID
	}
	return nil
}

// Load implements negotiation.Store.
func (s *sqlStore) Load(ctx context.Context, id negotiation.ID) (*negotiation.Session, error) {
	var rec []byte
	err := s.db.QueryRowContext(ctx, s.q.load, int64(id)).Scan(&rec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, negotiation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading record: %w", err)
	}

	sess := &negotiation.Session{}
	if err := sess.UnmarshalBinary(rec); err != nil {
		return nil, err
	}
	if sess.ID != id {
		return nil, fmt.Errorf("%w: row %d holds record %d", negotiation.ErrCorruptRecord, id, sess.ID)
	}
	return sess, nil
}

// Save implements negotiation.Store.
func (s *sqlStore) Save(ctx context.Context, sess *negotiation.Session) error {
	rec, err := sess.MarshalBinary()
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, s.q.update, rec, int64(sess.ID))
	if err != nil {
		return fmt.Errorf("updating record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating record: %w", err)
	}
	if n == 0 {
		return negotiation.ErrNotFound
	}
	return nil
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
