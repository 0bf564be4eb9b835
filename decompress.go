package decompress

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

// Decompress extracts input and, when output is not empty, writes the result under output.
//
// input must be a file path (string) or the archive bytes ([]byte); any other type
// fails with an *InputTypeError before anything is read. The returned records are
// always the post-transform list, whether or not they were written to disk.
//
// Example:
//
//	files, err := decompress.Decompress(ctx, "release.tar.gz", "dist",
//	    decompress.WithStrip(1),
//	)
func Decompress(ctx context.Context, input any, output string, opts ...Option) ([]File, error) {
	var (
		buf    []byte
		source string
		isPath bool
	)
	switch in := input.(type) {
	case string:
		source, isPath = in, true
	case []byte:
		buf = in
	default:
		return nil, &InputTypeError{Type: fmt.Sprintf("%T", input)}
	}

	cfg := newConfig(opts...)
	start := time.Now()

	if isPath {
		var err error
		if buf, err = readSource(cfg, source); err != nil {
			return nil, err
		}
	}

	files, err := aggregate(ctx, buf, cfg)
	if err != nil {
		return nil, err
	}

	files = transform(files, cfg)

	// An empty record list leaves the filesystem untouched, output directory included.
	if output != "" && len(files) > 0 {
		if err := materialize(ctx, files, output, cfg); err != nil {
			return nil, err
		}
	}

	cfg.logger.Info("extraction complete",
		"records", len(files),
		"output", output,
		"duration", time.Since(start),
	)

	return files, nil
}

// readSource reads the archive at path through the configured filesystem.
func readSource(cfg config, path string) ([]byte, error) {
	if cfg.localFS {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve input path %s: %w", path, err)
		}
		path = abs
	}

	buf, err := cfg.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive %s: %w", path, err)
	}

	return buf, nil
}
