package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mapnav/navclient/internal/app"
	"github.com/mapnav/navclient/internal/core/domain"
	"github.com/mapnav/navclient/internal/core/usecases"
)

type routeSummary struct {
	Source      string                `json:"source" yaml:"source"`
	Destination string                `json:"destination" yaml:"destination"`
	Route       *domain.RouteGeometry `json:"route" yaml:"route"`
}

func newRouteCmd(cfg loadedConfig, opts *Options) *cobra.Command {
	var from, to, mode, depart string
	cmd := &cobra.Command{
		Use:     "route",
		Short:   "Compute a route between two points",
		Example: "  navclient route --from 39.92,32.85 --to 39.97,32.74 --mode transit",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := parseCoordinate(from)
			if err != nil {
				return err
			}
			dst, err := parseCoordinate(to)
			if err != nil {
				return err
			}
			var departure *time.Time
			if depart != "" {
				t, err := time.Parse(time.RFC3339, depart)
				if err != nil {
					return fmt.Errorf("--depart: %w", err)
				}
				departure = &t
			}

			ctx := cmd.Context()
			return withApp(ctx, cfg(), func(a *app.App) error {
				if _, err := a.Routes.SetOptions(ctx, domain.TransportMode(mode), departure); err != nil {
					return err
				}
				if _, err := a.Routes.SetEndpoint(ctx, domain.EndpointSource, src, usecases.EndpointOptions{NoAutoRoute: true}); err != nil {
					return err
				}
				if _, err := a.Routes.SetEndpoint(ctx, domain.EndpointDestination, dst, usecases.EndpointOptions{NoAutoRoute: true}); err != nil {
					return err
				}
				route, err := a.Routes.Reroute(ctx)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), routeSummary{
					Source:      a.Routes.EndpointAddress(domain.EndpointSource),
					Destination: a.Routes.EndpointAddress(domain.EndpointDestination),
					Route:       route,
				}, opts.YAML)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Source as lat,lng")
	cmd.Flags().StringVar(&to, "to", "", "Destination as lat,lng")
	cmd.Flags().StringVar(&mode, "mode", string(domain.ModeDriving), "driving, walking, cycling or transit")
	cmd.Flags().StringVar(&depart, "depart", "", "Departure time (RFC3339) for transit")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newDiscoverCmd(cfg loadedConfig, opts *Options) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:       "discover <type>",
		Short:     "List points of interest near a source and route to the nearest",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(domain.POITaxi), string(domain.POIPharmacy), string(domain.POIWiFi), string(domain.POIBicycle)},
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := domain.ParsePOIType(args[0])
			if err != nil {
				return err
			}
			src, err := parseCoordinate(from)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			return withApp(ctx, cfg(), func(a *app.App) error {
				if _, err := a.Routes.SetEndpoint(ctx, domain.EndpointSource, src, usecases.EndpointOptions{NoAutoRoute: true}); err != nil {
					return err
				}
				res, err := a.Discovery.Discover(ctx, t)
				if err != nil {
					return err
				}
				if res.RouteErr != nil {
					slog.Warn("route to nearest failed", "type", t, "error", res.RouteErr)
				}
				return printResult(cmd.OutOrStdout(), res, opts.YAML)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Search origin as lat,lng")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func newFavoritesCmd(cfg loadedConfig, opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "Manage saved places",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List favorites from the active backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfg(), func(a *app.App) error {
				return printResult(cmd.OutOrStdout(), a.Favorites.List(), opts.YAML)
			})
		},
	}

	var name, at, address, tag string
	add := &cobra.Command{
		Use:   "add",
		Short: "Save a place",
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := parseCoordinate(at)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withApp(ctx, cfg(), func(a *app.App) error {
				fav, err := a.Favorites.Add(ctx, domain.FavoriteCandidate{
					Name:     name,
					Address:  address,
					Location: loc,
					Tag:      tag,
				})
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), fav, opts.YAML)
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "Unique name")
	add.Flags().StringVar(&at, "at", "", "Location as lat,lng")
	add.Flags().StringVar(&address, "address", "", "Display address")
	add.Flags().StringVar(&tag, "tag", "", "Optional tag such as home or work")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("at")

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a saved place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, cfg(), func(a *app.App) error {
				if err := a.Favorites.Remove(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			})
		},
	}

	var output string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write favorites as a YAML document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfg(), func(a *app.App) error {
				var w io.Writer = cmd.OutOrStdout()
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				return writeExport(w, a.Favorites.Mode(), a.Favorites.List(), time.Now())
			})
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "-", "Output file, - for stdout")

	cmd.AddCommand(list, add, remove, export)
	return cmd
}

type exportedFavorite struct {
	ID      string  `yaml:"id"`
	Name    string  `yaml:"name"`
	Address string  `yaml:"address,omitempty"`
	Lat     float64 `yaml:"lat"`
	Lng     float64 `yaml:"lng"`
	Tag     string  `yaml:"tag,omitempty"`
}

type favoritesExport struct {
	Source     usecases.FavoriteMode `yaml:"source"`
	ExportedAt time.Time             `yaml:"exported_at"`
	Favorites  []exportedFavorite    `yaml:"favorites"`
}

func writeExport(w io.Writer, mode usecases.FavoriteMode, list []domain.FavoriteLocation, now time.Time) error {
	doc := favoritesExport{
		Source:     mode,
		ExportedAt: now.UTC(),
		Favorites:  make([]exportedFavorite, 0, len(list)),
	}
	for _, f := range list {
		doc.Favorites = append(doc.Favorites, exportedFavorite{
			ID:      f.ID,
			Name:    f.Name,
			Address: f.Address,
			Lat:     f.Location.Lat,
			Lng:     f.Location.Lng,
			Tag:     f.Tag,
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

type trafficSummary struct {
	State    usecases.TrafficState `json:"state" yaml:"state"`
	Features int                   `json:"features" yaml:"features"`
}

func newTrafficCmd(cfg loadedConfig, opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "traffic",
		Short: "Fetch the latest traffic snapshot (requires a token)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, cfg(), func(a *app.App) error {
				if err := a.Traffic.Enable(ctx); err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), trafficSummary{
					State:    a.Traffic.State(),
					Features: len(a.Overlays.Shapes(domain.CategoryTraffic)),
				}, opts.YAML)
			})
		},
	}
}

func newAreasCmd(cfg loadedConfig, opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "areas",
		Short: "Inspect routing area preferences",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored area preferences (requires a token)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, cfg(), func(a *app.App) error {
				prefs, err := a.Areas.List(ctx)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), prefs, opts.YAML)
			})
		},
	})
	return cmd
}
