package decompress

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Aggregate runs every configured plugin against input and concatenates their records.
//
// Plugins run concurrently over the same buffer. The result preserves plugin order:
// all records of the first plugin precede those of the second, regardless of which
// finishes first. The first plugin failure cancels the others and is returned as a
// *PluginError; no partial results are returned. With no plugins configured the
// result is empty.
func Aggregate(ctx context.Context, input []byte, opts ...Option) ([]File, error) {
	return aggregate(ctx, input, newConfig(opts...))
}

func aggregate(ctx context.Context, input []byte, cfg config) ([]File, error) {
	if len(cfg.plugins) == 0 {
		cfg.logger.Debug("no plugins configured, skipping extraction")
		return []File{}, nil
	}

	results := make([][]File, len(cfg.plugins))
	popts := cfg.pluginOptions()

	g, gctx := errgroup.WithContext(ctx)
	for i, plugin := range cfg.plugins {
		g.Go(func() error {
			files, err := plugin.Decompress(gctx, input, popts)
			if err != nil {
				return &PluginError{Plugin: plugin.Name(), Err: err}
			}

			cfg.logger.Debug("plugin finished", "plugin", plugin.Name(), "records", len(files))
			results[i] = files
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, files := range results {
		total += len(files)
	}

	all := make([]File, 0, total)
	for _, files := range results {
		all = append(all, files...)
	}

	return all, nil
}
