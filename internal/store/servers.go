package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"viewer/internal/engine"
	"viewer/internal/language"
	"viewer/internal/logging"
)

// LookupServer returns the server named name, enabled or not.
func (s *Store) LookupServer(ctx context.Context, name string) (engine.ServerDefinition, bool, error) {
	var def engine.ServerDefinition
	var lang string
	var enabled int
	err := s.db.QueryRowContext(ctx,
		"SELECT name, definition, language, enabled FROM servers WHERE name = ?", name,
	).Scan(&def.Name, &def.Definition, &lang, &enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.ServerDefinition{}, false, nil
	}
	if err != nil {
		return engine.ServerDefinition{}, false, fmt.Errorf("lookup server %s: %w", name, err)
	}
	def.Language = language.Language(lang)
	def.Enabled = enabled != 0
	return def, true, nil
}

// PutServer inserts or replaces a server.
func (s *Store) PutServer(ctx context.Context, def engine.ServerDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("server has no name")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO servers (name, definition, language, enabled, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			definition = excluded.definition,
			language = excluded.language,
			enabled = excluded.enabled,
			updated_at = CURRENT_TIMESTAMP`,
		def.Name, def.Definition, string(def.Language), boolInt(def.Enabled))
	if err != nil {
		return fmt.Errorf("put server %s: %w", def.Name, err)
	}
	logging.StoreDebug("server %s saved (%d bytes, enabled=%v)", def.Name, len(def.Definition), def.Enabled)
	return nil
}

// SetServerEnabled toggles a server.
func (s *Store) SetServerEnabled(ctx context.Context, name string, enabled bool) error {
	res, err := s.db.ExecContext(ctx, "UPDATE servers SET enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE name = ?", boolInt(enabled), name)
	if err != nil {
		return fmt.Errorf("update server %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("server %s not found", name)
	}
	return nil
}

// DeleteServer removes a server.
func (s *Store) DeleteServer(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM servers WHERE name = ?", name); err != nil {
		return fmt.Errorf("delete server %s: %w", name, err)
	}
	return nil
}

// ListServers returns every server ordered by name.
func (s *Store) ListServers(ctx context.Context) ([]engine.ServerDefinition, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, definition, language, enabled FROM servers ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	defer rows.Close()

	var out []engine.ServerDefinition
	for rows.Next() {
		var def engine.ServerDefinition
		var lang string
		var enabled int
		if err := rows.Scan(&def.Name, &def.Definition, &lang, &enabled); err != nil {
			return nil, err
		}
		def.Language = language.Language(lang)
		def.Enabled = enabled != 0
		out = append(out, def)
	}
	return out, rows.Err()
}
