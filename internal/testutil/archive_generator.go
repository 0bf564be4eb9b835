// Package testutil provides archive builders for extraction tests.
// Archives are built in memory so every test controls its exact entries.
package testutil

import (
	"archive/tar"
	"bytes"
	"io"
	"io/fs"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

// EntryType identifies the kind of entry an Entry produces.
type EntryType int

const (
	TypeFile EntryType = iota
	TypeDir
	TypeSymlink
	TypeHardlink
)

// DefaultModTime is the modification time given to entries that do not set one.
var DefaultModTime = time.Date(2020, time.January, 2, 3, 4, 6, 0, time.UTC)

// Entry describes one archive member.
type Entry struct {
	Name     string
	Type     EntryType
	Body     string
	Linkname string
	Mode     int64
	ModTime  time.Time
}

// File returns a regular file entry.
func File(name, body string) Entry {
	return Entry{Name: name, Type: TypeFile, Body: body, Mode: 0o644}
}

// Dir returns a directory entry. A trailing slash is added when missing.
func Dir(name string) Entry {
	if name != "" && name[len(name)-1] != '/' {
		name += "/"
	}
	return Entry{Name: name, Type: TypeDir, Mode: 0o755}
}

// Symlink returns a symlink entry pointing at target.
func Symlink(name, target string) Entry {
	return Entry{Name: name, Type: TypeSymlink, Linkname: target, Mode: 0o777}
}

// Hardlink returns a hard link entry whose source is target, relative to the archive root.
func Hardlink(name, target string) Entry {
	return Entry{Name: name, Type: TypeHardlink, Linkname: target, Mode: 0o644}
}

// WithModTime returns a copy of e with its modification time set.
func (e Entry) WithModTime(t time.Time) Entry {
	e.ModTime = t
	return e
}

// WithMode returns a copy of e with its permission bits set.
func (e Entry) WithMode(mode int64) Entry {
	e.Mode = mode
	return e
}

func (e Entry) modTime() time.Time {
	if e.ModTime.IsZero() {
		return DefaultModTime
	}
	return e.ModTime
}

// Tar builds an uncompressed tar archive.
func Tar(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	writeTar(t, &buf, entries)
	return buf.Bytes()
}

// TarGz builds a gzip-compressed tar archive.
func TarGz(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	gw := pgzip.NewWriter(&buf)
	writeTar(t, gw, entries)
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

// TarZst builds a zstd-compressed tar archive.
func TarZst(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	writeTar(t, zw, entries)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// TarXz builds an xz-compressed tar archive.
func TarXz(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	writeTar(t, xw, entries)
	require.NoError(t, xw.Close())
	return buf.Bytes()
}

// TarLz4 builds an lz4-framed tar archive.
func TarLz4(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	lw := lz4.NewWriter(&buf)
	writeTar(t, lw, entries)
	require.NoError(t, lw.Close())
	return buf.Bytes()
}

// Gzip compresses data that is not a tar archive.
func Gzip(t testing.TB, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	gw := pgzip.NewWriter(&buf)
	_, err := gw.Write(data)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func writeTar(t testing.TB, w io.Writer, entries []Entry) {
	t.Helper()

	tw := tar.NewWriter(w)
	for _, e := range entries {
		header := &tar.Header{
			Name:    e.Name,
			Mode:    e.Mode,
			ModTime: e.modTime(),
			Format:  tar.FormatPAX,
		}

		switch e.Type {
		case TypeFile:
			header.Typeflag = tar.TypeReg
			header.Size = int64(len(e.Body))
		case TypeDir:
			header.Typeflag = tar.TypeDir
		case TypeSymlink:
			header.Typeflag = tar.TypeSymlink
			header.Linkname = e.Linkname
		case TypeHardlink:
			header.Typeflag = tar.TypeLink
			header.Linkname = e.Linkname
		}

		require.NoError(t, tw.WriteHeader(header))
		if e.Type == TypeFile {
			_, err := tw.Write([]byte(e.Body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
}

// Zip builds a zip archive. Hard link entries are not representable in zip and
// are rejected.
func Zip(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		header := &zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Modified: e.modTime(),
		}

		var body string
		switch e.Type {
		case TypeFile:
			header.SetMode(fs.FileMode(e.Mode).Perm())
			body = e.Body
		case TypeDir:
			header.Method = zip.Store
			header.SetMode(fs.ModeDir | fs.FileMode(e.Mode).Perm())
		case TypeSymlink:
			header.SetMode(fs.ModeSymlink | 0o777)
			body = e.Linkname
		case TypeHardlink:
			t.Fatalf("zip archives cannot contain hard link %s", e.Name)
		}

		w, err := zw.CreateHeader(header)
		require.NoError(t, err)
		if body != "" {
			_, err = w.Write([]byte(body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
