package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"viewer/internal/engine"
	"viewer/internal/logging"
)

// Invocation is a stored invocation record.
type Invocation struct {
	ID            string    `json:"id"`
	ServerName    string    `json:"server_name"`
	ResultCID     string    `json:"result_cid,omitempty"`
	AuxiliaryCIDs []string  `json:"auxiliary_cids,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
	Failed        bool      `json:"failed,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// RecordInvocation stores rec. Failures are logged and never reported to
// the caller.
func (s *Store) RecordInvocation(ctx context.Context, rec engine.InvocationRecord) {
	aux := rec.AuxiliaryCIDs
	if aux == nil {
		aux = []string{}
	}
	auxJSON, err := json.Marshal(aux)
	if err != nil {
		logging.StoreError("encode auxiliary cids for %s: %v", rec.ServerName, err)
		return
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO invocations (id, server_name, result_cid, auxiliary_cids, duration_ms, failed)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, rec.ServerName, rec.ResultCID, string(auxJSON), rec.Duration.Milliseconds(), boolInt(rec.Failed))
	if err != nil {
		logging.StoreError("record invocation of %s: %v", rec.ServerName, err)
		return
	}
	logging.StoreDebug("invocation %s recorded for %s -> %s", id, rec.ServerName, rec.ResultCID)
}

// ListInvocations returns the most recent invocations of server, or of
// every server when server is empty.
func (s *Store) ListInvocations(ctx context.Context, server string, limit int) ([]Invocation, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, server_name, result_cid, auxiliary_cids, duration_ms, failed, created_at
		FROM invocations`
	args := []any{}
	if server != "" {
		query += " WHERE server_name = ?"
		args = append(args, server)
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invocations: %w", err)
	}
	defer rows.Close()

	var out []Invocation
	for rows.Next() {
		var inv Invocation
		var aux, created string
		var failed int
		if err := rows.Scan(&inv.ID, &inv.ServerName, &inv.ResultCID, &aux, &inv.DurationMS, &failed, &created); err != nil {
			return nil, err
		}
		inv.CreatedAt = parseTimestamp(created)
		inv.Failed = failed != 0
		if err := json.Unmarshal([]byte(aux), &inv.AuxiliaryCIDs); err != nil {
			logging.StoreDebug("invocation %s: bad auxiliary cids %q: %v", inv.ID, aux, err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// parseTimestamp accepts both the text SQLite stores and the RFC 3339 form
// drivers produce when they decode DATETIME columns themselves.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
