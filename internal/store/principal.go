package store

import (
	"context"
	"database/sql"
	"fmt"

	"viewer/internal/engine"
)

// entryKind is the table holding a principal's key/value entries.
type entryKind string

const (
	kindVariables entryKind = "variables"
	kindSecrets   entryKind = "secrets"
)

// PutVariable sets a variable for the store's principal.
func (s *Store) PutVariable(ctx context.Context, name, value string, enabled bool) error {
	return s.putEntry(ctx, kindVariables, name, value, enabled)
}

// PutSecret sets a secret for the store's principal.
func (s *Store) PutSecret(ctx context.Context, name, value string, enabled bool) error {
	return s.putEntry(ctx, kindSecrets, name, value, enabled)
}

// CurrentPrincipal returns the principal's enabled variables and secrets.
// It reads the database on every call.
func (s *Store) CurrentPrincipal(ctx context.Context) (engine.Principal, error) {
	vars, err := s.entries(ctx, kindVariables)
	if err != nil {
		return engine.Principal{}, err
	}
	secrets, err := s.entries(ctx, kindSecrets)
	if err != nil {
		return engine.Principal{}, err
	}
	return engine.Principal{Name: s.principal, Variables: vars, Secrets: secrets}, nil
}

func (s *Store) putEntry(ctx context.Context, kind entryKind, name, value string, enabled bool) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (principal, name, value, enabled) VALUES (?, ?, ?, ?)
		ON CONFLICT(principal, name) DO UPDATE SET value = excluded.value, enabled = excluded.enabled`, kind)
	if _, err := s.db.ExecContext(ctx, query, s.principal, name, value, boolInt(enabled)); err != nil {
		return fmt.Errorf("put %s %s: %w", kind, name, err)
	}
	return nil
}

func (s *Store) entries(ctx context.Context, kind entryKind) (map[string]string, error) {
	query := fmt.Sprintf("SELECT name, value FROM %s WHERE principal = ? AND enabled = 1", kind)
	rows, err := s.db.QueryContext(ctx, query, s.principal)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", kind, err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}

func (s *Store) replaceEntries(ctx context.Context, kind entryKind, values map[string]string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE principal = ?", kind), s.principal); err != nil {
			return err
		}
		query := fmt.Sprintf("INSERT INTO %s (principal, name, value, enabled) VALUES (?, ?, ?, 1)", kind)
		for name, value := range values {
			if _, err := tx.ExecContext(ctx, query, s.principal, name, value); err != nil {
				return fmt.Errorf("insert %s %s: %w", kind, name, err)
			}
		}
		return nil
	})
}
