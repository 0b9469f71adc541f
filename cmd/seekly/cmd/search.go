package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seekly/seekly/internal/engine"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	mode    string
	topK    int
	filters []string
	format  string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed passages",
		Long: `Search indexed passages with hybrid retrieval.

Combines BM25 keyword scoring and semantic vector search with reciprocal
rank fusion. The mode trades latency against recall; leave it unset to let
query complexity pick one.

Examples:
  seekly search "error handling"
  seekly search "compare costs" --mode comprehensive
  seekly search "cat" --mode fast --top-k 5 --filter lang=en
  seekly search "setup" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "Retrieval mode: fast, accurate, comprehensive")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "n", 0, "Maximum number of results (0 = mode default)")
	cmd.Flags().StringSliceVar(&opts.filters, "filter", nil, "Metadata filter as key=value (repeatable)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	filter, err := parseFilter(opts.filters)
	if err != nil {
		return err
	}

	e, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	resp, err := e.Retrieve(ctx, query, engine.RetrieveOptions{
		Mode:       opts.mode,
		Filter:     filter,
		MaxResults: opts.topK,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "No results.")
	}
	for i, r := range resp.Results {
		fmt.Fprintf(out, "%2d. [%.4f] %s (%s)\n", i+1, r.Score, r.ChunkID, r.DocID)
		fmt.Fprintf(out, "    %s\n", snippet(r.Content, 160))
	}
	fmt.Fprintf(out, "\n%s mode, %d candidates, %dms", resp.Meta.StrategyUsed,
		resp.Meta.TotalCandidatesConsidered, resp.Meta.ElapsedMs)
	if resp.Meta.CacheTierHit != "" {
		fmt.Fprintf(out, ", cache %s", resp.Meta.CacheTierHit)
	}
	if resp.Meta.Degraded {
		fmt.Fprintf(out, ", degraded (%s)", resp.Meta.DegradedPath)
	}
	fmt.Fprintln(out)
	return nil
}

func snippet(content string, max int) string {
	content = strings.Join(strings.Fields(content), " ")
	if len(content) <= max {
		return content
	}
	return content[:max] + "…"
}
