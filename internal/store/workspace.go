package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"viewer/internal/alias"
	"viewer/internal/engine"
	"viewer/internal/language"
	"viewer/internal/logging"
)

// Workspace file names.
const (
	ServersDir    = "servers"
	AliasesFile   = "aliases.yaml"
	VariablesFile = "variables.yaml"
	SecretsFile   = "secrets.yaml"
)

// SyncReport summarizes one workspace sync.
type SyncReport struct {
	Servers   int      `json:"servers"`
	Aliases   int      `json:"aliases"`
	Variables int      `json:"variables"`
	Secrets   int      `json:"secrets"`
	Skipped   []string `json:"skipped,omitempty"`
}

// aliasEntry is an aliases.yaml entry. Entries are enabled unless they say
// otherwise.
type aliasEntry struct {
	Name       string          `yaml:"name"`
	MatchType  alias.MatchType `yaml:"match_type"`
	Pattern    string          `yaml:"pattern"`
	Target     string          `yaml:"target"`
	IgnoreCase bool            `yaml:"ignore_case"`
	Enabled    *bool           `yaml:"enabled"`
}

func (e aliasEntry) route() alias.Route {
	enabled := true
	if e.Enabled != nil {
		enabled = *e.Enabled
	}
	return alias.Route{
		Name:       e.Name,
		MatchType:  e.MatchType,
		Pattern:    e.Pattern,
		Target:     e.Target,
		IgnoreCase: e.IgnoreCase,
		Enabled:    enabled,
	}
}

// SyncWorkspace loads dir into the store:
//
//	servers/<name>.<ext>   one server per file, language from the suffix
//	aliases.yaml           list of alias routes, matched in file order
//	variables.yaml         name: value map for the principal
//	secrets.yaml           name: value map for the principal
//
// Servers and aliases are upserted. Variables and secrets are replaced when
// their file exists. Missing files are not an error.
func (s *Store) SyncWorkspace(ctx context.Context, dir string) (SyncReport, error) {
	timer := logging.StartTimer(logging.CategoryStore, "SyncWorkspace")
	defer timer.StopWithThreshold(2 * time.Second)

	var report SyncReport
	if err := s.syncServers(ctx, filepath.Join(dir, ServersDir), &report); err != nil {
		return report, err
	}
	if err := s.syncAliases(ctx, filepath.Join(dir, AliasesFile), &report); err != nil {
		return report, err
	}

	n, err := s.syncEntries(ctx, filepath.Join(dir, VariablesFile), kindVariables)
	if err != nil {
		return report, err
	}
	report.Variables = n
	if n, err = s.syncEntries(ctx, filepath.Join(dir, SecretsFile), kindSecrets); err != nil {
		return report, err
	}
	report.Secrets = n

	logging.Store("workspace %s synced: servers=%d aliases=%d variables=%d secrets=%d skipped=%d",
		dir, report.Servers, report.Aliases, report.Variables, report.Secrets, len(report.Skipped))
	return report, nil
}

func (s *Store) syncServers(ctx context.Context, dir string, report *SyncReport) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		def, ok := serverFromFile(entry.Name())
		if !ok {
			report.Skipped = append(report.Skipped, entry.Name())
			logging.StoreDebug("workspace: skipping %s (no executable suffix)", entry.Name())
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read server %s: %w", entry.Name(), err)
		}
		def.Definition = string(data)
		if err := s.PutServer(ctx, def); err != nil {
			return err
		}
		report.Servers++
	}
	return nil
}

// serverFromFile maps "echo.py" to an enabled Python server named echo.
func serverFromFile(filename string) (engine.ServerDefinition, bool) {
	stem, ext, ok := language.SplitSuffix(filename)
	if !ok {
		return engine.ServerDefinition{}, false
	}
	lang, ok := language.ExecutableSuffix(ext)
	if !ok {
		return engine.ServerDefinition{}, false
	}
	return engine.ServerDefinition{Name: stem, Language: lang, Enabled: true}, true
}

func (s *Store) syncAliases(ctx context.Context, path string, report *SyncReport) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var entries []aliasEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for i, e := range entries {
		if err := s.PutAlias(ctx, e.route(), i); err != nil {
			return fmt.Errorf("%s entry %d: %w", path, i, err)
		}
		report.Aliases++
	}
	return nil
}

func (s *Store) syncEntries(ctx context.Context, path string, kind entryKind) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := s.replaceEntries(ctx, kind, values); err != nil {
		return 0, err
	}
	return len(values), nil
}
