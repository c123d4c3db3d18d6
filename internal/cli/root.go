// Package cli wires the ragqa commands.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ragqa/internal/client"
	"ragqa/internal/config"
	"ragqa/internal/logger"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logJSON    bool
	serverURL  string

	cfg *config.AppConfig
	log logger.Logger
}

// NewRootCmd builds the ragqa command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "ragqa",
		Short:         "Retrieval-augmented question answering over your documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to YAML config file (defaults to ./config.yaml or ~/.config/ragqa/config.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&opts.logJSON, "log-json", false, "Emit logs as JSON")
	flags.StringVar(&opts.serverURL, "server", "", "Base URL of a running ragqa server (defaults to client.base_url)")

	root.AddCommand(
		newServeCmd(opts),
		newIngestCmd(opts),
		newAskCmd(opts),
		newTUICmd(opts),
		newConvertEnvCmd(),
	)
	return root
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	var err error
	if o.configPath == "" {
		o.cfg, _, err = config.LoadDefault()
	} else {
		o.cfg, err = config.Load(o.configPath)
	}
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		o.cfg.Log.Level = o.logLevel
	}
	if cmd.Flags().Changed("log-json") {
		o.cfg.Log.JSON = o.logJSON
	}
	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.ParseLevel(o.cfg.Log.Level)
	logCfg.JSON = o.cfg.Log.JSON
	logCfg.Output = cmd.ErrOrStderr()
	logger.Init(logCfg)
	o.log = logger.GetDefault()
	return nil
}

func (o *rootOptions) client() *client.Client {
	base := o.serverURL
	if base == "" {
		base = o.cfg.Client.BaseURL
	}
	return client.New(base, time.Duration(o.cfg.Client.TimeoutSecs)*time.Second)
}

// Execute runs the root command until it finishes or the process is signalled.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		logger.Error("command failed", "error", err)
		return 1
	}
	return 0
}
