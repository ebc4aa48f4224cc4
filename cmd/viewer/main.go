package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"viewer/internal/config"
	"viewer/internal/controlflow"
	"viewer/internal/engine"
	"viewer/internal/logging"
	"viewer/internal/runner"
	"viewer/internal/store"
)

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string
	dbPath     string
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "viewer",
	Short: "viewer - path-addressed snippet execution",
	Long: `viewer stores small programs ("servers") and runs them by URL path.

A path such as /upper/greet/world is evaluated right to left: world is a
literal, greet is invoked with it, and upper receives greet's output.
Paths under /io run as two-phase request/response chains.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/.viewer/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: from config)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: from config)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(ioCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(cidCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(signatureCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig applies flag overrides on top of the config file.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		base := workspace
		if base == "" {
			base = "."
		}
		path = filepath.Join(base, ".viewer", "config.yaml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if workspace != "" {
		cfg.Storage.Workspace = workspace
	}
	if dbPath != "" {
		cfg.Storage.DatabasePath = dbPath
	} else if !filepath.IsAbs(cfg.Storage.DatabasePath) && cfg.Storage.DatabasePath != ":memory:" {
		// Relative database paths live under the workspace.
		cfg.Storage.DatabasePath = filepath.Join(cfg.Storage.Workspace, cfg.Storage.DatabasePath)
	}
	if verbose {
		cfg.Logging.DebugMode = true
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app holds the wired components shared by the commands.
type app struct {
	cfg    *config.Config
	store  *store.Store
	engine *engine.Engine
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}
}

// bootstrap loads configuration, opens the store and builds the engine.
func bootstrap() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := logging.Initialize(cfg.Storage.Workspace, cfg.Logging.Options()); err != nil {
		logger.Warn("file logging disabled", zap.Error(err))
	}
	logging.Boot("viewer %s starting (workspace=%s)", cfg.Version, cfg.Storage.Workspace)
	if logging.IsDebugMode() {
		logger.Debug("category logs enabled", zap.String("dir", filepath.Join(cfg.Storage.Workspace, ".viewer", "logs")))
	}

	st, err := store.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.Debug("store opened",
		zap.String("driver", cfg.Storage.Driver),
		zap.String("path", cfg.Storage.DatabasePath))

	e := engine.New(engine.Collaborators{
		Servers:    st,
		Aliases:    st,
		Content:    st,
		Principals: st,
		Recorder:   st,
		Runners:    runner.NewDefaultRegistry(cfg.Execution),
	},
		engine.WithBuiltins(controlflow.Builtins(cfg.ControlFlow)...),
		engine.WithMaxContentBytes(cfg.Content.MaxContentBytes),
		engine.WithTimeout(cfg.GetExecutionTimeout()),
	)
	logging.BootDebug("engine ready: builtins=%v max_content=%d", e.BuiltinNames(), cfg.Content.MaxContentBytes)
	logger.Debug("engine ready", zap.Strings("builtins", e.BuiltinNames()))
	return &app{cfg: cfg, store: st, engine: e}, nil
}
