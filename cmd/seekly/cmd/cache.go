package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the result cache",
	}
	cmd.AddCommand(newCacheStatsCmd())
	cmd.AddCommand(newCacheClearCmd())
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-tier cache entry counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := newEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			stats := e.CacheStats(ctx)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "L1 (exact, hot):  %d entries\n", stats.L1Entries)
			fmt.Fprintf(out, "L2 (exact, TTL):  %d entries\n", stats.L2Entries)
			fmt.Fprintf(out, "L3 (semantic):    %d entries\n", stats.L3Entries)
			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	var tags []string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cached results",
		Long: `Clear cached results across all tiers.

Without flags the whole cache is dropped. With --tag only entries carrying
one of the tags are removed (results are tagged doc:<doc-id> per cited
document).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := newEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if len(tags) == 0 {
				e.InvalidateCache(ctx, nil)
				fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
				return nil
			}
			n := e.InvalidateCache(ctx, tags)
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cache entries\n", n)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Invalidate entries carrying this tag (repeatable)")
	return cmd
}
