package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/seekly/seekly/internal/store"
)

// passageInput is the JSON-lines ingestion format.
type passageInput struct {
	ChunkID  string          `json:"chunk_id"`
	DocID    string          `json:"doc_id"`
	Content  string          `json:"content"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <passages.jsonl>",
		Short: "Index passages from a JSON-lines file",
		Long: `Index document passages for retrieval.

Reads one JSON object per line with chunk_id, doc_id, content and optional
metadata. Use "-" to read from stdin.

Examples:
  seekly index passages.jsonl
  cat passages.jsonl | seekly index -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, args[0])
		},
	}
	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string) error {
	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	passages, err := readPassages(in)
	if err != nil {
		return err
	}
	if len(passages) == 0 {
		return fmt.Errorf("no passages in input")
	}

	e, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.Index(ctx, passages); err != nil {
		return err
	}

	stats := e.LexicalStats()
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d passages (%d total, %d terms)\n",
		len(passages), stats.DocumentCount, stats.TermCount)
	return nil
}

func readPassages(in io.Reader) ([]*store.Passage, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	var passages []*store.Passage
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var p passageInput
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		md, err := toMetadata(p.Metadata)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		passages = append(passages, &store.Passage{
			ChunkID:  p.ChunkID,
			DocID:    p.DocID,
			Content:  p.Content,
			Metadata: md,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return passages, nil
}

// toMetadata maps loose JSON values onto the typed metadata union.
func toMetadata(raw map[string]any) (store.Metadata, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	md := make(store.Metadata, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			md[key] = store.String(v)
		case float64:
			md[key] = store.Number(v)
		case bool:
			md[key] = store.Boolean(v)
		case []any:
			list := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("metadata %q: list values must be strings", key)
				}
				list = append(list, s)
			}
			md[key] = store.StringList(list...)
		default:
			return nil, fmt.Errorf("metadata %q: unsupported value type %T", key, value)
		}
	}
	return md, nil
}
