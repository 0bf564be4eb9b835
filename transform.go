package decompress

import (
	"strings"
)

// Transform applies stripping, filtering, and mapping to records, in that order.
//
// Stripping removes leading path components; a record left with an empty path
// or "." is dropped and never reaches the filter or map function. Hard links have
// their Linkname stripped by the same count so they keep pointing at the stripped
// source. The input slice is not modified.
func Transform(files []File, opts ...Option) []File {
	return transform(files, newConfig(opts...))
}

func transform(files []File, cfg config) []File {
	out := make([]File, 0, len(files))
	for _, file := range files {
		if cfg.strip > 0 {
			var ok bool
			if file, ok = stripRecord(file, cfg.strip); !ok {
				cfg.logger.Debug("record dropped by strip", "path", file.Path)
				continue
			}
		}

		if cfg.filter != nil && !cfg.filter(file) {
			continue
		}

		if cfg.mapper != nil {
			file = cfg.mapper(file)
		}

		out = append(out, file)
	}

	return out
}

func stripRecord(file File, n int) (File, bool) {
	path := StripDirs(file.Path, n)
	if path == "" || path == "." {
		return file, false
	}

	if file.Type == TypeLink {
		linkname := StripDirs(file.Linkname, n)
		if linkname == "" || linkname == "." {
			return file, false
		}
		file.Linkname = linkname
	}

	file.Path = path
	return file, true
}

// StripDirs removes the first n slash-separated components of path, like
// tar --strip-components. Leading "." components and empty components from
// repeated slashes are not counted.
// A trailing slash is kept. When path has n or fewer components the result is "".
func StripDirs(path string, n int) string {
	if n <= 0 {
		return path
	}

	trailing := strings.HasSuffix(path, "/")
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	for len(parts) > 0 && parts[0] == "." {
		parts = parts[1:]
	}
	if len(parts) <= n {
		return ""
	}

	stripped := strings.Join(parts[n:], "/")
	if trailing {
		stripped += "/"
	}

	return stripped
}
