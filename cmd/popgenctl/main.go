package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"popgensim/internal/config"
	"popgensim/internal/logging"
	"popgensim/internal/storage"
	"popgensim/pkg/popgensim"
)

const (
	defaultBadgerDir = "popgensim-data/badger"
	defaultSQLiteDB  = "popgensim-data/popgensim.db"
	defaultExports   = "exports"
)

// globalFlags are shared by every subcommand. Empty values fall back to the
// loaded config file.
type globalFlags struct {
	configPath   string
	storeKind    string
	dbPath       string
	artifactsDir string
	exportsDir   string
	logLevel     string
	logFormat    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "popgenctl",
		Short:         "Forward Wright-Fisher population genetics simulations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML config file layered over the built-in defaults")
	pf.StringVar(&flags.storeKind, "store", "", "store backend: memory|sqlite|badger")
	pf.StringVar(&flags.dbPath, "db-path", "", "sqlite file or badger directory")
	pf.StringVar(&flags.artifactsDir, "artifacts-dir", "", "run artifacts directory")
	pf.StringVar(&flags.exportsDir, "exports-dir", defaultExports, "export output directory")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug|info|warn|error")
	pf.StringVar(&flags.logFormat, "log-format", "", "text|json|auto")

	root.AddCommand(
		newInitCommand(flags),
		newResetCommand(flags),
		newRunCommand(flags),
		newRunsCommand(flags),
		newDiagnosticsCommand(flags),
		newFixationsCommand(flags),
		newExportCommand(flags),
	)
	return root
}

func (f *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.storeKind != "" {
		cfg.Storage.Kind = f.storeKind
	}
	if f.dbPath != "" {
		cfg.Storage.Path = f.dbPath
	}
	if f.artifactsDir != "" {
		cfg.ArtifactsDir = f.artifactsDir
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Logging.Format = f.logFormat
	}
	return cfg, nil
}

// openClient builds a client for the configured store. The caller closes it.
func (f *globalFlags) openClient(cmd *cobra.Command) (*popgensim.Client, *config.Config, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewWithWriter(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}

	kind := cfg.Storage.Kind
	if kind == "" {
		kind = storage.DefaultStoreKind()
	}
	path := cfg.Storage.Path
	if path == "" {
		switch kind {
		case "badger":
			path = defaultBadgerDir
		case "sqlite":
			path = defaultSQLiteDB
		}
	}

	client, err := popgensim.New(popgensim.Options{
		StoreKind:    kind,
		DBPath:       path,
		ArtifactsDir: cfg.ArtifactsDir,
		ExportsDir:   f.exportsDir,
		Logger:       logger,
	})
	if err != nil {
		return nil, nil, err
	}
	cfg.Storage.Kind, cfg.Storage.Path = kind, path
	return client, cfg, nil
}

func withClient(flags *globalFlags, fn func(cmd *cobra.Command, client *popgensim.Client, cfg *config.Config) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		client, cfg, err := flags.openClient(cmd)
		if err != nil {
			return err
		}
		defer func() {
			_ = client.Close()
		}()
		return fn(cmd, client, cfg)
	}
}

func newInitCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the run store",
		Args:  cobra.NoArgs,
		RunE: withClient(flags, func(cmd *cobra.Command, client *popgensim.Client, cfg *config.Config) error {
			if err := client.Init(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized store=%s\n", cfg.Storage.Kind)
			return nil
		}),
	}
}

func newResetCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete every persisted run",
		Args:  cobra.NoArgs,
		RunE: withClient(flags, func(cmd *cobra.Command, client *popgensim.Client, cfg *config.Config) error {
			if err := client.Init(cmd.Context()); err != nil {
				return err
			}
			if err := client.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset store=%s\n", cfg.Storage.Kind)
			return nil
		}),
	}
}
