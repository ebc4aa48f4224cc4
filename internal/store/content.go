package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"viewer/internal/cid"
	"viewer/internal/logging"
)

// FetchContent returns the bytes addressed by id. Literal identifiers carry
// their content and never touch the database.
func (s *Store) FetchContent(ctx context.Context, id cid.CID) ([]byte, bool, error) {
	if lit, ok := id.Literal(); ok {
		return lit, true, nil
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM content WHERE cid = ?", id.Value()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fetch content %s: %w", id, err)
	}
	if !id.Matches(data) {
		logging.StoreError("content %s failed digest verification", id)
		return nil, false, fmt.Errorf("content %s does not match its identifier", id)
	}
	return data, true, nil
}

// StoreContent saves data and returns its identifier. Storing the same bytes
// twice is a no-op.
func (s *Store) StoreContent(ctx context.Context, data []byte) (cid.CID, error) {
	id, err := cid.Identify(data)
	if err != nil {
		return cid.CID{}, err
	}
	if id.IsLiteral() {
		return id, nil
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO content (cid, data, size) VALUES (?, ?, ?) ON CONFLICT(cid) DO NOTHING",
		id.Value(), data, len(data))
	if err != nil {
		return cid.CID{}, fmt.Errorf("store content %s: %w", id, err)
	}
	logging.StoreDebug("content %s stored (%d bytes)", id, len(data))
	return id, nil
}

// ContentCount returns the number of stored blobs.
func (s *Store) ContentCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM content").Scan(&n)
	return n, err
}
