package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

func newCacheCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the terrain disk cache",
	}

	cmd.AddCommand(
		newCacheStatsCmd(app),
		newCacheClearCmd(app),
		newCacheSweepCmd(app),
	)

	return cmd
}

type cacheStatsOutput struct {
	Path    string         `json:"path"`
	Entries int            `json:"entries"`
	ByKind  map[string]int `json:"by_kind"`
}

func newCacheStatsCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show what the cache holds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cache, err := app.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = cache.Close() }()

			stats, err := cache.Stats(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, cacheStatsOutput(stats))
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "path: %s\nentries: %d\n", stats.Path, stats.Entries)
			kinds := make([]string, 0, len(stats.ByKind))
			for kind := range stats.ByKind {
				kinds = append(kinds, kind)
			}
			slices.Sort(kinds)
			for _, kind := range kinds {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d\n", kind, stats.ByKind[kind])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print stats as JSON")

	return cmd
}

func newCacheClearCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cache, err := app.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = cache.Close() }()

			if err := cache.Clear(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return err
		},
	}
}

func newCacheSweepCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired and unreadable entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cache, err := app.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = cache.Close() }()

			removed, err := cache.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
			return err
		},
	}
}
