package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/seekly/seekly/internal/engine"
	"github.com/seekly/seekly/internal/store"
)

// newEngine builds an engine from the loaded config. Callers own Close.
func newEngine(ctx context.Context) (*engine.Engine, error) {
	return engine.New(ctx, cfg, engine.WithMetrics(engineMetrics))
}

// parseFilter converts repeated key=value flags into a metadata filter.
// Values that parse as numbers or booleans are typed accordingly.
func parseFilter(pairs []string) (store.Filter, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filter := make(store.Filter, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q (want key=value)", pair)
		}
		switch {
		case value == "true" || value == "false":
			filter[key] = store.Boolean(value == "true")
		default:
			if n, err := strconv.ParseFloat(value, 64); err == nil {
				filter[key] = store.Number(n)
			} else {
				filter[key] = store.String(value)
			}
		}
	}
	return filter, nil
}
