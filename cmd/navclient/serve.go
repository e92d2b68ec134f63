package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"github.com/mapnav/navclient/internal/adapters/http"
	"github.com/mapnav/navclient/internal/app"
)

func newServeCmd(cfg loadedConfig) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP, GraphQL and WebSocket front end",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			if port > 0 {
				c.Server.Port = port
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			return withApp(ctx, c, func(a *app.App) error {
				srv := fiber.New(fiber.Config{
					ReadTimeout:  time.Duration(c.Server.ReadTimeout) * time.Second,
					WriteTimeout: time.Duration(c.Server.WriteTimeout) * time.Second,
					BodyLimit:    1024 * 1024,
					AppName:      "navclient",
				})
				srv.Use(recover.New())
				srv.Use(cors.New(cors.Config{
					AllowOrigins: c.Server.AllowOrigins,
					AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
					AllowHeaders: "Origin, Content-Type, Accept, Authorization, If-None-Match",
					MaxAge:       3600,
				}))

				http.SetupRoutes(srv, a.Dependencies())

				errc := make(chan error, 1)
				go func() {
					addr := fmt.Sprintf(":%d", c.Server.Port)
					slog.Info("navclient server starting", "addr", addr, "version", http.Version)
					errc <- srv.Listen(addr)
				}()

				quit := make(chan os.Signal, 1)
				signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
				defer signal.Stop(quit)

				select {
				case err := <-errc:
					return fmt.Errorf("listen: %w", err)
				case sig := <-quit:
					slog.Info("shutdown signal received, draining connections", "signal", sig.String())
				}

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
					slog.Error("forced shutdown", "error", err)
				}
				slog.Info("server stopped")
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides server.port)")
	return cmd
}
