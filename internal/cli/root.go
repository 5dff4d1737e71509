// Package cli implements the scholar command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smhanov/scholar/internal/config"
	"github.com/smhanov/scholar/internal/logger"
	"github.com/smhanov/scholar/internal/workbench"
)

// Version is set at build time with -ldflags.
var Version = "dev"

type app struct {
	cfgFile string
	debug   bool
	// extra options applied to every workbench the commands build
	workbenchOpts []workbench.Option
}

// NewRootCommand builds the command tree. opts are passed to every
// workbench the subcommands create.
func NewRootCommand(opts ...workbench.Option) *cobra.Command {
	a := &app{workbenchOpts: opts}

	root := &cobra.Command{
		Use:           "scholar",
		Short:         "An LLM research assistant for papers, literature reviews and key insights",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			config.LoadDotEnv()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./config.yaml or ./config/config.yaml)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		a.serveCommand(),
		a.runCommand(),
		a.teamsCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "scholar version %s\n", Version)
			},
		},
	)
	return root
}

func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if a.debug {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func (a *app) newLogger(cfg *config.Config, outputs ...string) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Development: cfg.Log.Development || a.debug,
		OutputPaths: outputs,
	})
}
