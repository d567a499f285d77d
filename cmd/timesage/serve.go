package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/timesage/timesage/internal/auth"
	"github.com/timesage/timesage/internal/gateway"
	"github.com/timesage/timesage/internal/history"
	"github.com/timesage/timesage/internal/logging"
	"github.com/timesage/timesage/internal/server"
)

func serveCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local API server for the desktop UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
			if err != nil {
				return err
			}
			defer log.Sync()

			provider := auth.NewKeychainProvider(cfg.Gateway.TokenURL, log)
			gw := gateway.New(cfg.Gateway.Endpoint, provider, gateway.WithLogger(log))

			hist, err := history.Open(cfg.Database.Path, log)
			if err != nil {
				return err
			}
			defer hist.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(server.Options{
				Gateway: gw,
				History: hist,
				Logger:  log,
			})
			log.Info("starting timesage",
				zap.String("host", cfg.Server.Host), zap.Int("port", cfg.Server.Port))
			return srv.Run(ctx, cfg.Server.Host, cfg.Server.Port, quiet)
		},
	}

	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress per-request logging")
	return cmd
}
