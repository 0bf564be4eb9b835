// Package decompress extracts tar and zip archives with path-containment guarantees.
//
// An archive is decoded by every configured FormatPlugin into File records,
// the records are transformed (strip, filter, map), and, when an output
// directory is given, written to disk. Key features:
//   - tar, tar.gz, tar.bz2, tar.zst and zip out of the box; tar.xz and tar.lz4 on request
//   - records returned in memory whether or not anything is written
//   - writes confined to the real path of the output directory, including through
//     symlinked ancestors, link targets and "../" entries
//   - deferred hard links, preserved mtimes and optional exact permissions
//   - decoding limits for untrusted input
//
// Basic usage:
//
//	// Inspect an archive without touching disk
//	files, err := decompress.Decompress(ctx, "bundle.tar.gz", "")
//
//	// Extract to a directory, dropping the top-level folder
//	files, err = decompress.Decompress(ctx, data, "dist",
//	    decompress.WithStrip(1),
//	    decompress.WithFilter(func(f decompress.File) bool {
//	        return !strings.HasSuffix(f.Path, ".md")
//	    }),
//	)
//
// Refusals are reported as *PathEscapeError, whose message starts with
// "Refusing", and match ErrPathEscape with errors.Is.
package decompress
