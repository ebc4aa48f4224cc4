package store

import (
	"context"
	"fmt"

	"viewer/internal/alias"
	"viewer/internal/engine"
	"viewer/internal/logging"
)

type aliasRow struct {
	route    alias.Route
	position int
}

// PutAlias inserts or replaces an alias route. Routes are matched in
// ascending position, then by name.
func (s *Store) PutAlias(ctx context.Context, r alias.Route, position int) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.MatchType == "" {
		r.MatchType = alias.MatchLiteral
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO aliases (name, match_type, pattern, target, ignore_case, enabled, position, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			match_type = excluded.match_type,
			pattern = excluded.pattern,
			target = excluded.target,
			ignore_case = excluded.ignore_case,
			enabled = excluded.enabled,
			position = excluded.position,
			updated_at = CURRENT_TIMESTAMP`,
		r.Name, string(r.MatchType), r.Pattern, r.Target, boolInt(r.IgnoreCase), boolInt(r.Enabled), position)
	if err != nil {
		return fmt.Errorf("put alias %s: %w", r.Name, err)
	}
	s.invalidateAliases()
	return nil
}

// DeleteAlias removes an alias.
func (s *Store) DeleteAlias(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM aliases WHERE name = ?", name); err != nil {
		return fmt.Errorf("delete alias %s: %w", name, err)
	}
	s.invalidateAliases()
	return nil
}

// ListAliases returns every alias in match order.
func (s *Store) ListAliases(ctx context.Context) ([]alias.Route, error) {
	rows, err := s.loadAliases(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]alias.Route, len(rows))
	for i, r := range rows {
		out[i] = r.route
	}
	return out, nil
}

// LookupAliasTarget matches path against the enabled aliases. The first
// matching route wins and its captures are substituted into the target.
func (s *Store) LookupAliasTarget(ctx context.Context, path string) (engine.AliasTarget, error) {
	routes, err := s.ListAliases(ctx)
	if err != nil {
		return engine.AliasTarget{}, err
	}
	m, ok := alias.Resolve(routes, path)
	if !ok {
		return engine.AliasTarget{}, nil
	}
	logging.StoreDebug("alias %s matched %s -> %s", m.Route.Name, path, m.TargetPath)
	return engine.AliasTarget{
		Matched:    true,
		Name:       m.Route.Name,
		TargetPath: m.TargetPath,
		IsRelative: m.IsRelative,
	}, nil
}

func (s *Store) invalidateAliases() {
	s.mu.Lock()
	s.aliases = nil
	s.mu.Unlock()
}

func (s *Store) loadAliases(ctx context.Context) ([]aliasRow, error) {
	s.mu.RLock()
	cached := s.aliases
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, match_type, pattern, target, ignore_case, enabled, position
		FROM aliases ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("load aliases: %w", err)
	}
	defer rows.Close()

	loaded := []aliasRow{}
	for rows.Next() {
		var r aliasRow
		var matchType string
		var ignoreCase, enabled int
		if err := rows.Scan(&r.route.Name, &matchType, &r.route.Pattern, &r.route.Target, &ignoreCase, &enabled, &r.position); err != nil {
			return nil, err
		}
		r.route.MatchType = alias.MatchType(matchType)
		r.route.IgnoreCase = ignoreCase != 0
		r.route.Enabled = enabled != 0
		loaded = append(loaded, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.aliases = loaded
	s.mu.Unlock()
	return loaded, nil
}
