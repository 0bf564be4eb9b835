//go:build unix

package decompress

import "golang.org/x/sys/unix"

// openNoFollow makes the final open fail if the destination was swapped for a symlink.
const openNoFollow = unix.O_NOFOLLOW

const symlinksAsHardLinks = false
