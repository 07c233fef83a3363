package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ukiyo/internal/config"
	"ukiyo/internal/logging"
	"ukiyo/internal/provider"
	"ukiyo/internal/server"
	"ukiyo/internal/usage"
)

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE:  a.runServe,
	}
}

func (a *app) runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := a.cfg
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Server.JWTSecret == "" {
		return errors.New("server.jwt_secret (or UKIYO_JWT_SECRET) must be set")
	}

	tracker, err := usage.NewTracker(cfg.Usage.File)
	if err != nil {
		return err
	}
	defer func() {
		if err := tracker.Close(); err != nil {
			logging.BootWarn("saving usage: %v", err)
		}
	}()

	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	set, err := provider.NewSet(ctx, cfg, tracker)
	if err != nil {
		return err
	}

	srv, err := server.New(server.ConfigFrom(cfg), server.Deps{
		Store:      st,
		Engine:     a.newEngine(set),
		Translator: set.Translator,
		Usage:      tracker,
	})
	if err != nil {
		return err
	}

	logging.Boot("ukiyo starting: addr=%s db=%s", cfg.Server.ListenAddr, cfg.Store.DatabasePath)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.Server.ListenAddr)
	})
	if _, err := os.Stat(a.configPath); err == nil {
		g.Go(func() error {
			return config.Watch(gctx, a.configPath, func(next *config.Config) {
				// only the log level is applied live; everything else needs a restart
				if err := logging.SetLevel(next.Logging.Level); err != nil {
					logging.BootWarn("config reload: %v", err)
					return
				}
				logging.Boot("config reloaded: log level %s", logging.Level())
			})
		})
	}

	err = g.Wait()
	logging.Boot("ukiyo stopped")
	return err
}
