package config

// StorageConfig configures the SQLite store and the workspace directory it syncs from.
type StorageConfig struct {
	// Driver is the database/sql driver: "sqlite3" (cgo) or "sqlite" (pure Go)
	Driver string `yaml:"driver" json:"driver,omitempty"`

	DatabasePath string `yaml:"database_path" json:"database_path,omitempty"`

	// Workspace holds servers/, aliases.yaml, variables.yaml and secrets.yaml
	Workspace string `yaml:"workspace" json:"workspace,omitempty"`

	// Watch re-syncs the workspace into the database when files change
	Watch bool `yaml:"watch" json:"watch,omitempty"`

	// Principal whose variables and secrets are offered to servers
	Principal string `yaml:"principal" json:"principal,omitempty"`
}

// DefaultStorageConfig returns the default storage configuration.
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Driver:       "sqlite3",
		DatabasePath: ".viewer/viewer.db",
		Workspace:    ".",
		Watch:        true,
		Principal:    "default",
	}
}
