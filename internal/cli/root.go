// Package cli implements the xagent command line.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/trickstertwo/xagent/config"
	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xlog/adapter/zerolog"
)

type rootFlags struct {
	configPath string
	logLevel   string
	store      string
}

// NewRootCommand builds the xagent command tree.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "xagent",
		Short: "Run cooperating agents over a shared mailbox bus",
		Long: `xagent drives a group of autonomous agents. Each agent polls its own
mailbox on a message bus, answers control commands (HELP, STATUS, STOP,
PAUSE, RESUME) and runs a perceive, decide, act cycle while RUNNING.

Configuration is read from a YAML file (--config) and XAGENT_* environment
variables; a .env file in the working directory is loaded first.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.store, "store", "", "override mailbox store (memory, redis)")

	root.AddCommand(newRunCommand(flags))
	root.AddCommand(newAgentsCommand(flags))
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

func (f *rootFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.store != "" {
		cfg.Bus.Store = f.store
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewLogger installs the zerolog backend at the configured level.
func NewLogger(cfg config.LogConfig) (*xlog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return zerolog.Use(zerolog.Config{
		MinLevel:          level,
		Console:           cfg.Console,
		ConsoleTimeFormat: time.RFC3339,
	}).With(xlog.Str("app", "xagent")), nil
}

func parseLevel(s string) (xlog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return xlog.LevelDebug, nil
	case "", "info":
		return xlog.LevelInfo, nil
	case "warn":
		return xlog.LevelWarn, nil
	case "error":
		return xlog.LevelError, nil
	default:
		return xlog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
