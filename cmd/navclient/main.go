package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mapnav/navclient/internal/app"
	"github.com/mapnav/navclient/internal/core/domain"
	"github.com/mapnav/navclient/internal/pkg/config"
	"github.com/mapnav/navclient/internal/pkg/logging"
	"github.com/mapnav/navclient/internal/pkg/telemetry"
)

// Options are the flags shared by every subcommand.
type Options struct {
	Token    string
	LogLevel string
	YAML     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &Options{}
	var cfg *config.Config

	root := &cobra.Command{
		Use:          "navclient",
		Short:        "Navigation map client: routing, POI discovery, favorites and traffic",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load("navclient")
			if err != nil {
				return err
			}
			if opts.Token != "" {
				c.Backend.Token = opts.Token
			}
			level := c.Log.Level
			if opts.LogLevel != "" {
				level = opts.LogLevel
			}
			logging.Setup(os.Stderr, level, c.Log.Format)
			cfg = c
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.Token, "token", "", "Backend auth token (overrides NAVCLIENT_BACKEND_TOKEN)")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVarP(&opts.YAML, "yaml", "y", false, "Print results as YAML instead of JSON")

	loaded := func() *config.Config { return cfg }
	root.AddCommand(
		newServeCmd(loaded),
		newRouteCmd(loaded, opts),
		newDiscoverCmd(loaded, opts),
		newFavoritesCmd(loaded, opts),
		newTrafficCmd(loaded, opts),
		newAreasCmd(loaded, opts),
	)
	return root
}

// loadedConfig returns the configuration read by the root command.
type loadedConfig func() *config.Config

// withApp builds the client for one command and tears it down afterwards.
func withApp(ctx context.Context, cfg *config.Config, fn func(*app.App) error) error {
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.CollectorAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// parseCoordinate reads "lat,lng".
func parseCoordinate(s string) (domain.Coordinate, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return domain.Coordinate{}, fmt.Errorf("coordinate %q: want lat,lng", s)
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("coordinate %q: latitude: %w", s, err)
	}
	ln, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("coordinate %q: longitude: %w", s, err)
	}
	c := domain.Coordinate{Lat: la, Lng: ln}
	return c, c.Validate()
}

func printResult(w io.Writer, v any, asYAML bool) error {
	if asYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
