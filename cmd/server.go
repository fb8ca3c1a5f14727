package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/example/resy-sniper/internal/activity"
	"github.com/example/resy-sniper/internal/auth"
	"github.com/example/resy-sniper/internal/config"
	"github.com/example/resy-sniper/internal/db"
	"github.com/example/resy-sniper/internal/migrate"
	"github.com/example/resy-sniper/internal/monitor"
	"github.com/example/resy-sniper/internal/resy"
	"github.com/example/resy-sniper/internal/settings"
	"github.com/example/resy-sniper/internal/slots"
	"github.com/example/resy-sniper/internal/watches"
	"github.com/example/resy-sniper/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the API server and reservation monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			log := zerolog.New(os.Stderr).With().Timestamp().Logger()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}

			if migrateUp {
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
			}

			authStore := auth.NewStore(d, cfg.CookieHashKey, cfg.CookieBlockKey)
			watchRepo := watches.NewRepo(d)
			slotRepo := slots.NewRepo(d)
			activityRepo := activity.NewRepo(d)
			settingsRepo := settings.NewRepo(d)
			client := resy.New()

			// The monitor starts STOPPED; /api/monitor/start brings it up.
			mon := &monitor.Monitor{
				Client:   client,
				Watches:  watchRepo,
				Slots:    slotRepo,
				Activity: activityRepo,
				Settings: settingsRepo,
				Interval: cfg.ScanInterval,
				Log:      log.With().Str("component", "monitor").Logger(),
			}

			srv := &web.Server{
				Auth:     authStore,
				Watches:  watchRepo,
				Slots:    slotRepo,
				Activity: activityRepo,
				Settings: settingsRepo,
				Resy:     client,
				Monitor:  mon,
				Log:      log.With().Str("component", "web").Logger(),
			}

			log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
			return web.Start(ctx, cfg.ListenAddr, srv.Routes())
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
