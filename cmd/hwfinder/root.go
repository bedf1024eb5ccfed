package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hwfinder/internal/config"
	logpkg "github.com/kailas-cloud/hwfinder/internal/logger"
)

// app carries what every subcommand needs after the root pre-run.
type app struct {
	env        string
	configPath string
	cfg        config.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "hwfinder",
		Short: "Conversational hardware product finder",
		Long: `hwfinder narrows a furniture-hardware need down to a short list of
catalog products, then looks up full details for the ones you pick.

Example usage:
  hwfinder chat                          # interactive recommendation session
  hwfinder batch --file queries.txt      # one query per line, no dialogue
  hwfinder detail "Modern Pull 128mm"    # exact-name detail lookup
  hwfinder index --csv catalog.csv       # rebuild the local index
  hwfinder serve                         # HTTP API`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.env, "env", "", "environment name, selects config/<env>.yaml (default $ENV or local)")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "explicit config file path")

	root.AddCommand(
		newChatCmd(a),
		newBatchCmd(a),
		newDetailCmd(a),
		newServeCmd(a),
		newIndexCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) init() error {
	if a.env == "" {
		a.env = config.GetEnv()
	}

	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.Load(a.env)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a.logger, err = logpkg.New(a.env, logpkg.Options{Level: a.cfg.Logging.Level, Format: a.cfg.Logging.Format})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	return nil
}
