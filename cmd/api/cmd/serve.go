package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kaiser100010/grc-system-sub002/internal/database"
	"github.com/kaiser100010/grc-system-sub002/internal/fallback"
	"github.com/kaiser100010/grc-system-sub002/internal/policy"
	"github.com/kaiser100010/grc-system-sub002/internal/router"
	"github.com/kaiser100010/grc-system-sub002/internal/seed"
)

var (
	serveMigrate       bool
	serveSeedEmail     string
	serveSeedPassword  string
	serveShutdownGrace time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if serveMigrate {
			if a.pool == nil {
				return errNeedsPostgres
			}
			if err := database.Migrate(ctx, a.pool); err != nil {
				return err
			}
			log.Info().Msg("migrations applied")
		}
		if serveSeedPassword != "" {
			err := seed.Run(ctx, log, a.users, a.auth, a.resources, seed.Options{
				AdminEmail: serveSeedEmail, AdminPassword: serveSeedPassword,
			})
			switch {
			case errors.Is(err, seed.ErrNotEmpty):
				log.Info().Msg("store not empty, skipping seed")
			case err != nil:
				return err
			}
		}

		authz, err := policy.New(log)
		if err != nil {
			return err
		}
		deps := router.Deps{Auth: a.auth, Authz: authz, Resources: a.resources}
		if cfg.FallbackEnabled {
			deps.Fallback = fallback.New()
		}

		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router.New(log, cfg, deps),
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
		}
		errc := make(chan error, 1)
		go func() {
			log.Info().Str("addr", srv.Addr).Str("store", cfg.Store).Msg("api listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()

		// graceful shutdown
		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Info().Msg("shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply database migrations before serving")
	serveCmd.Flags().StringVar(&serveSeedEmail, "seed-admin-email", "admin@grc.com", "administrator email for --seed-admin-password")
	serveCmd.Flags().StringVar(&serveSeedPassword, "seed-admin-password", "", "seed demo data with this administrator password when the store is empty")
	serveCmd.Flags().DurationVar(&serveShutdownGrace, "shutdown-grace", 10*time.Second, "time allowed for in-flight requests on shutdown")
}
