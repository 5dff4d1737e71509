package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smhanov/scholar/internal/metrics"
	"github.com/smhanov/scholar/internal/server"
	"github.com/smhanov/scholar/internal/workbench"
)

func (a *app) serveCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web interface",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			log, err := a.newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			rec := metrics.New()
			opts := append([]workbench.Option{workbench.WithLogger(log), workbench.WithMetrics(rec)}, a.workbenchOpts...)
			wb, err := workbench.New(cfg, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(cfg.Server, wb,
				server.WithLogger(log),
				server.WithMetricsHandler(rec.Handler()),
			)
			log.Info("starting scholar", zap.String("version", Version), zap.Int("teams", len(wb.Teams())))
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.address")
	return cmd
}
