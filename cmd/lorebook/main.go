package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lorebook/internal/config"
	"lorebook/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool
	timeout    time.Duration
	jsonOutput bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "lorebook",
	Short: "LoreBook - build your world, one character at a time",
	Long: `LoreBook keeps the characters, places and events of a fictional world.

Entities are stored in a Supabase project (or a local SQLite file) and can
be invented by Gemini from a name and a short hint.

Run without arguments to start the interactive interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The interactive UI owns the terminal; it logs to files only.
		if !cmd.HasParent() {
			logger = zap.NewNop()
			return nil
		}

		zapCfg := zap.NewProductionConfig()
		zapCfg.Encoding = "console"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		var err error
		logger, err = zapCfg.Build()
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
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmd)
	},
}

// loadConfig reads the config file and applies the global flags.
func loadConfig() (*config.Config, string, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	if timeout > 0 {
		cfg.Store.Timeout = timeout.String()
		cfg.Generation.Timeout = timeout.String()
	}
	if err := logging.Initialize(cfg.Logging.Settings()); err != nil {
		// File logging is best effort; the CLI keeps going without it.
		if logger != nil {
			logger.Warn("file logging disabled", zap.Error(err))
		}
	}
	logging.Boot("config loaded from %s (backend=%s)", path, cfg.Store.Backend)
	return cfg, path, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ~/.lorebook/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Override store and generation call timeouts")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")

	listCmd.Flags().StringVarP(&listKind, "kind", "k", "", "Only list one kind (character, place, event)")

	for _, c := range []*cobra.Command{loginCmd, signupCmd} {
		c.Flags().StringVarP(&authEmail, "email", "e", "", "Account email")
		c.Flags().StringVarP(&authPassword, "password", "p", "", "Account password (read from stdin when empty)")
	}

	addCmd.PersistentFlags().StringVarP(&addName, "name", "n", "", "Name or title")
	addCmd.PersistentFlags().StringVarP(&addDescription, "description", "d", "", "Description")
	addCharacterCmd.Flags().StringVar(&addRole, "role", "", "Role or class")
	addPlaceCmd.Flags().StringVar(&addPlaceType, "type", "", "Place type")
	addEventCmd.Flags().StringVar(&addDate, "date", "", "Free-form date")
	addCmd.AddCommand(addCharacterCmd, addPlaceCmd, addEventCmd)

	generateCmd.PersistentFlags().StringVar(&generateHint, "hint", "", "Description used to steer the model")
	generateCmd.AddCommand(generateCharacterCmd, generatePlaceCmd)

	rootCmd.AddCommand(
		loginCmd,
		signupCmd,
		logoutCmd,
		whoamiCmd,
		listCmd,
		addCmd,
		generateCmd,
		deleteCmd,
		statusCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
