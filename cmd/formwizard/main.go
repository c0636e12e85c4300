package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/goliatone/go-formwizard/internal/config"
	"github.com/goliatone/go-formwizard/internal/logger"
)

type cli struct {
	cfg config.Config
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	c.cfg = cfg
	return logger.Init(cfg.LogLevel, cfg.LogEncoding)
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:               "formwizard",
		Short:             "Run conditional multi-step application wizards",
		SilenceUsage:      true,
		PersistentPreRunE: c.setupConfig,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = logger.Sync()
		},
	}
	if err := config.BindFlags(viper.GetViper(), root.PersistentFlags()); err != nil {
		panic(err)
	}

	root.AddCommand(c.runCommand(), c.serveCommand(), c.validateCommand())
	return root
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
