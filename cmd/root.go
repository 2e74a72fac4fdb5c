package cmd

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tbourn/legal-billing-backend/internal/config"
	"github.com/tbourn/legal-billing-backend/internal/sysutil"
)

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by --version and the health route.
func SetVersion(v string) {
	version = v
}

// Execute is the main entry point for the CLI application.
func Execute() {
	root := newRootCmd()
	// Running the binary without a subcommand starts the API.
	if len(os.Args) == 1 {
		root.SetArgs([]string{"serve"})
	}
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// cliEnv carries what the persistent pre-run resolved for the subcommands.
type cliEnv struct {
	envFile  string
	database string
	cfg      config.Config
}

func newRootCmd() *cobra.Command {
	env := &cliEnv{}

	root := &cobra.Command{
		Use:   "legalbill",
		Short: "Turns client emails into billable Clio time entries",
		Long: `legalbill imports recent Gmail messages, summarizes each one into a
billable description with an hour estimate, and pushes the reviewed
entries to Clio exactly once.

Configuration is read from the environment, optionally seeded from a
.env file. Without a subcommand the HTTP API is started.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return env.load()
		},
	}
	root.SetVersionTemplate(`{{printf "legalbill version %s\n" .Version}}`)

	root.PersistentFlags().StringVar(&env.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().StringVar(&env.database, "database", "", "database URL or sqlite path (overrides DATABASE_URL)")

	root.AddCommand(newServeCmd(env))
	root.AddCommand(newMigrateCmd(env))
	root.AddCommand(newPushCmd(env))
	root.AddCommand(newGenerateCmd(env))
	root.AddCommand(newImportCmd(env))
	return root
}

// load seeds the environment from the dotenv file, reads the configuration
// and configures the global logger. Variables already set win over the file.
func (e *cliEnv) load() error {
	if e.envFile != "" {
		if err := godotenv.Load(e.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.DatabaseURL = sysutil.FirstNonEmpty(e.database, cfg.DatabaseURL)
	sysutil.ConfigureLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	e.cfg = cfg
	return nil
}
