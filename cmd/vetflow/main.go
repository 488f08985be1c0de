// Command vetflow runs practice workflows from a terminal.
//
// It opens the configured store directly and answers each workflow dialog on
// stdin, so no server is needed:
//
//	vetflow -c config.yaml run checkin --user user:vet-1 --object appointment:a-17
//	vetflow -c config.yaml seed --fixtures fixtures.yaml
//	vetflow -c config.yaml validate
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nomis52/vetflow/buildinfo"
	"github.com/nomis52/vetflow/config"
	"github.com/nomis52/vetflow/logging"
	"github.com/nomis52/vetflow/store"
	"github.com/nomis52/vetflow/store/backend"
	"github.com/nomis52/vetflow/workflows/builtin"
)

const jobName = "vetflow"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "vetflow",
		Short:        "Run veterinary practice workflows from a terminal",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	cmd.AddCommand(
		runCmd(&configPath),
		seedCmd(&configPath),
		validateCmd(&configPath),
		versionCmd(),
	)
	return cmd
}

func validateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(*configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration validation successful: %s\n", *configPath)
			return nil
		},
	}
}

func seedCmd(configPath *string) *cobra.Command {
	var fixtures string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load fixture objects into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Close()

			ctx := cmd.Context()
			objects, closer, err := backend.Open(ctx, cfg.Store, logger.Logger)
			if err != nil {
				return err
			}
			defer closer.Close()

			f, err := os.Open(fixtures)
			if err != nil {
				return fmt.Errorf("failed to open fixtures: %w", err)
			}
			defer f.Close()

			objs, err := store.LoadFixtures(ctx, objects, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d objects\n", len(objs))
			return nil
		},
	}
	cmd.Flags().StringVar(&fixtures, "fixtures", "", "YAML fixtures file")
	_ = cmd.MarkFlagRequired("fixtures")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			props := buildinfo.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "vetflow\nBuilt: %s\nCommit: %s\nWorkflows: %v\n",
				props.BuildTime, props.GitCommit, builtin.Registry().Names())
		},
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Config{}, fmt.Errorf("config flag (-c or --config) is required")
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the configured logger. Output to stdout moves to stderr
// so logs don't interleave with dialogs.
func newLogger(cfg config.Config) (*logging.Logger, error) {
	lc := cfg.Logging
	if lc.Output == "" || lc.Output == "stdout" {
		lc.Output = "stderr"
	}
	logger, err := logging.New(lc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// staticConfig serves one config for the life of the process.
type staticConfig struct{ cfg *config.Config }

func (s staticConfig) Config() *config.Config { return s.cfg }

