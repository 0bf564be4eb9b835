package testutil

import (
	"fmt"
	"testing"
)

// PathTraversalTarGz builds a tar.gz whose single entry climbs out of the output directory.
func PathTraversalTarGz(t testing.TB) []byte {
	t.Helper()
	return TarGz(t, File("../../../../../../../../tmp/slipped.txt", "escaped"))
}

// SlipZip builds a zip whose entry path contains "../" segments.
func SlipZip(t testing.TB) []byte {
	t.Helper()
	return Zip(t, File("../../../../../../../../tmp/slipped_zip.txt", "escaped"))
}

// SymlinkWriteThroughZip builds a zip that plants a top-level symlink pointing at
// outside and then writes a file through it.
func SymlinkWriteThroughZip(t testing.TB, outside string) []byte {
	t.Helper()
	return Zip(t,
		Symlink("slip", outside),
		File("slip/escaped.txt", "escaped"),
	)
}

// SymlinkDirectoryTar builds a tar that plants a directory symlink climbing out of
// the output directory with a relative target and then extracts into it.
func SymlinkDirectoryTar(t testing.TB, depth int) []byte {
	t.Helper()

	target := ""
	for range depth {
		target += "../"
	}

	return Tar(t,
		Symlink("slipping_directory", target+"tmp"),
		File("slipping_directory/escaped.txt", "escaped"),
	)
}

// ChainedSymlinkTar builds a tar with a chain of symlinks whose last link points
// at outside, followed by a write through the head of the chain.
func ChainedSymlinkTar(t testing.TB, outside string) []byte {
	t.Helper()
	return Tar(t,
		Symlink("first", "second"),
		Symlink("second", "third"),
		Symlink("third", outside),
		File("first/escaped.txt", "escaped"),
	)
}

// HardlinkEscapeTar builds a tar with a hard link whose source lies outside the archive root.
func HardlinkEscapeTar(t testing.TB) []byte {
	t.Helper()
	return Tar(t, Hardlink("passwd", "../../../../../../etc/passwd"))
}

// EdgeCaseDotsTarGz builds a tar.gz with names that contain literal dot sequences
// which are not traversal segments.
func EdgeCaseDotsTarGz(t testing.TB) []byte {
	t.Helper()
	return TarGz(t,
		Dir("edge_case_dots"),
		File("edge_case_dots/internal_dots..txt", "internal"),
		Dir("edge_case_dots/sample.."),
		File("edge_case_dots/ending_dots..", "ending"),
		Symlink("edge_case_dots/x", "sample../test.txt"),
		File("edge_case_dots/sample../test.txt", "sample"),
	)
}

// FileCountBombTar builds a tar with count small files.
func FileCountBombTar(t testing.TB, count int) []byte {
	t.Helper()

	entries := make([]Entry, 0, count)
	for i := range count {
		entries = append(entries, File(fmt.Sprintf("bomb/file_%05d.txt", i), "x"))
	}
	return Tar(t, entries...)
}
