package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arx-os/vecindex/internal/common/logger"
	"github.com/arx-os/vecindex/internal/metrics"
	"github.com/arx-os/vecindex/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the demo HTTP front over the index",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.With("component", "vidxctl.serve")

	ix, err := openIndex()
	if err != nil {
		return err
	}
	defer ix.Close()

	collectors := metrics.New()
	srv := server.New(appConfig.Server.Addr, ix, server.Config{
		Auth: server.AuthConfig{
			JWTSecret: appConfig.Server.JWTSecret,
			SkipPaths: []string{"/healthz", "/readyz", "/metrics"},
		},
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: appConfig.Server.RateLimitRPS,
			Burst:             appConfig.Server.RateLimitBurst,
		},
		Collectors: collectors,
	}, appConfig.Server.ReadTimeout, appConfig.Server.WriteTimeout)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("serving on %s", appConfig.Server.Addr)
	return srv.Run(ctx)
}
