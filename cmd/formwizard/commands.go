package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/internal/logger"
	"github.com/goliatone/go-formwizard/pkg/configloader"
	"github.com/goliatone/go-formwizard/pkg/httpapi"
	"github.com/goliatone/go-formwizard/pkg/terminal"
)

func (c *cli) runCommand() *cobra.Command {
	var appID, sessionID, owner string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fill in an application wizard from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			e, err := newEngine(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer e.Close()

			app, ok := e.apps.Application(appID)
			if !ok {
				return fmt.Errorf("formwizard: unknown application %q (known: %v)", appID, e.apps.IDs())
			}
			session, err := e.newSession(app, sessionID, owner)
			if err != nil {
				return err
			}

			err = terminal.New(terminal.WithOutput(cmd.OutOrStdout()), terminal.WithTheme(terminal.Theme{
				WarnPrefix:  "! ",
				ErrorPrefix: "x ",
			})).Run(ctx, session)
			if errors.Is(err, terminal.ErrQuit) || errors.Is(err, terminal.ErrAborted) {
				fmt.Fprintf(cmd.OutOrStdout(), "Progress saved. Resume with --session %s\n", session.ID())
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&appID, "app", "", "application id to run")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to resume")
	cmd.Flags().StringVar(&owner, "owner", "", "user the progress belongs to")
	_ = cmd.MarkFlagRequired("app")
	return cmd
}

func (c *cli) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve wizard sessions over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEngine(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer e.Close()

			registry := httpapi.NewRegistry(httpapi.DefaultSessionTTL, c.cfg.EventsPerSecond, c.cfg.EventBurst)
			srv := httpapi.NewServer(c.cfg.ListenAddr, e.apps, e.newSession, httpapi.WithRegistry(registry))

			errc := make(chan error, 1)
			go func() { errc <- srv.Start() }()

			sigc := make(chan os.Signal, 1)
			signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errc:
				return err
			case sig := <-sigc:
				logger.Info("shutting down", zap.String("signal", sig.String()))
			}
			return srv.Stop(context.Background())
		},
	}
}

func (c *cli) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and check the application documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := configloader.LoadFS(os.DirFS(c.cfg.ConfigDir))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if store.Empty() {
				fmt.Fprintf(out, "no applications found in %s\n", c.cfg.ConfigDir)
				return nil
			}
			for _, id := range store.IDs() {
				app, _ := store.Application(id)
				fmt.Fprintf(out, "%s\t%d fields\t%d steps\t%s\n", id, len(app.Fields), len(app.Wizard.Steps), store.Source(id))
			}
			return nil
		},
	}
}
