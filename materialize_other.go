//go:build !unix

package decompress

const openNoFollow = 0

// Symlink records become hard links to their effective target, created after
// all regular files exist.
const symlinksAsHardLinks = true
