package decompress

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/go/decompress/internal/testutil"
)

func pluginOpts() PluginOptions {
	return PluginOptions{Limits: DefaultLimits()}
}

// TestPlugins_SingleFile tests that every tar-based plugin decodes a single regular file.
func TestPlugins_SingleFile(t *testing.T) {
	mtime := time.Date(2021, time.March, 4, 5, 6, 8, 0, time.UTC)
	entry := testutil.File("test.jpg", "jpeg bytes").WithModTime(mtime)

	tests := []struct {
		name   string
		plugin FormatPlugin
		data   []byte
	}{
		{"tar", TarPlugin(), testutil.Tar(t, entry)},
		{"tar.gz", TarGzPlugin(), testutil.TarGz(t, entry)},
		{"tar.zst", TarZstPlugin(), testutil.TarZst(t, entry)},
		{"tar.xz", TarXzPlugin(), testutil.TarXz(t, entry)},
		{"tar.lz4", TarLz4Plugin(), testutil.TarLz4(t, entry)},
		{"zip", ZipPlugin(), testutil.Zip(t, entry)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.plugin.Name())

			files, err := tt.plugin.Decompress(context.Background(), tt.data, pluginOpts())
			require.NoError(t, err)
			require.Len(t, files, 1)

			assert.Equal(t, "test.jpg", files[0].Path)
			assert.Equal(t, TypeFile, files[0].Type)
			assert.Equal(t, []byte("jpeg bytes"), files[0].Data)
			assert.True(t, mtime.Equal(files[0].Mtime), "mtime %v != %v", files[0].Mtime, mtime)
		})
	}
}

// TestTarBz2Plugin tests decoding the bzip2 fixture.
func TestTarBz2Plugin(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "file.tar.bz2"))
	require.NoError(t, err)

	files, err := TarBz2Plugin().Decompress(context.Background(), data, pluginOpts())
	require.NoError(t, err)
	require.Len(t, files, 1)

	assert.Equal(t, "test.txt", files[0].Path)
	assert.Equal(t, TypeFile, files[0].Type)
	assert.Equal(t, "hello from bzip2\n", string(files[0].Data))
	assert.Equal(t, fs.FileMode(0o644), files[0].Mode)
	assert.Equal(t, int64(1700000000), files[0].Mtime.Unix())
}

// TestPlugins_IgnoreOtherFormats tests that plugins return nothing for foreign input.
func TestPlugins_IgnoreOtherFormats(t *testing.T) {
	tarData := testutil.Tar(t, testutil.File("a.txt", "a"))
	zipData := testutil.Zip(t, testutil.File("a.txt", "a"))

	inputs := map[string][]byte{
		"empty":   {},
		"garbage": []byte("this is not an archive at all"),
	}

	for _, plugin := range append(DefaultPlugins(), TarXzPlugin(), TarLz4Plugin()) {
		for name, input := range inputs {
			files, err := plugin.Decompress(context.Background(), input, pluginOpts())
			require.NoError(t, err, "%s on %s", plugin.Name(), name)
			assert.Empty(t, files, "%s on %s", plugin.Name(), name)
		}

		if plugin.Name() != "tar" {
			files, err := plugin.Decompress(context.Background(), tarData, pluginOpts())
			require.NoError(t, err)
			assert.Empty(t, files, "%s on tar", plugin.Name())
		}
		if plugin.Name() != "zip" {
			files, err := plugin.Decompress(context.Background(), zipData, pluginOpts())
			require.NoError(t, err)
			assert.Empty(t, files, "%s on zip", plugin.Name())
		}
	}
}

// TestTarGzPlugin_NonTarPayload tests that gzip data without a tar inside yields no records.
func TestTarGzPlugin_NonTarPayload(t *testing.T) {
	data := testutil.Gzip(t, []byte("just some compressed text"))

	files, err := TarGzPlugin().Decompress(context.Background(), data, pluginOpts())
	require.NoError(t, err)
	assert.Empty(t, files)
}

// TestTarGzPlugin_Corrupted tests that a truncated stream is reported as corrupted.
func TestTarGzPlugin_Corrupted(t *testing.T) {
	data := testutil.TarGz(t, testutil.File("a.txt", "some content that compresses"))
	truncated := data[:12]

	_, err := TarGzPlugin().Decompress(context.Background(), truncated, pluginOpts())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArchiveCorrupted)
}

// TestTarPlugin_EntryTypes tests the record produced for every supported tar entry type.
func TestTarPlugin_EntryTypes(t *testing.T) {
	data := testutil.Tar(t,
		testutil.Dir("dir"),
		testutil.File("dir/file.txt", "hello").WithMode(0o640),
		testutil.Symlink("dir/symlink", "file.txt"),
		testutil.Hardlink("dir/hardlink", "dir/file.txt"),
	)

	files, err := TarPlugin().Decompress(context.Background(), data, pluginOpts())
	require.NoError(t, err)
	require.Len(t, files, 4)

	assert.Equal(t, File{
		Path:  "dir/",
		Type:  TypeDirectory,
		Mode:  0o755,
		Mtime: testutil.DefaultModTime,
	}, withUTC(files[0]))
	assert.Equal(t, File{
		Path:  "dir/file.txt",
		Type:  TypeFile,
		Data:  []byte("hello"),
		Mode:  0o640,
		Mtime: testutil.DefaultModTime,
	}, withUTC(files[1]))
	assert.Equal(t, TypeSymlink, files[2].Type)
	assert.Equal(t, "file.txt", files[2].Linkname)
	assert.Equal(t, TypeLink, files[3].Type)
	assert.Equal(t, "dir/file.txt", files[3].Linkname)
}

// TestTarPlugin_SetuidPreserved tests that special bits survive decoding.
func TestTarPlugin_SetuidPreserved(t *testing.T) {
	data := testutil.Tar(t, testutil.File("bin/tool", "#!/bin/sh").WithMode(0o4755))

	files, err := TarPlugin().Decompress(context.Background(), data, pluginOpts())
	require.NoError(t, err)
	require.Len(t, files, 1)

	assert.Equal(t, fs.ModeSetuid|0o755, files[0].Mode)
}

// TestZipPlugin_EntryTypes tests directories and symlinks in zip archives.
func TestZipPlugin_EntryTypes(t *testing.T) {
	data := testutil.Zip(t,
		testutil.Dir("dir"),
		testutil.File("dir/file.txt", "hello"),
		testutil.Symlink("dir/symlink", "file.txt"),
	)

	files, err := ZipPlugin().Decompress(context.Background(), data, pluginOpts())
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, "dir/", files[0].Path)
	assert.Equal(t, TypeDirectory, files[0].Type)

	assert.Equal(t, TypeFile, files[1].Type)
	assert.Equal(t, []byte("hello"), files[1].Data)
	assert.Equal(t, fs.FileMode(0o644), files[1].Mode)

	assert.Equal(t, TypeSymlink, files[2].Type)
	assert.Equal(t, "file.txt", files[2].Linkname)
	assert.Nil(t, files[2].Data)
}

// TestPlugins_Limits tests that file count and size limits stop decoding.
func TestPlugins_Limits(t *testing.T) {
	t.Run("file count", func(t *testing.T) {
		data := testutil.FileCountBombTar(t, 20)
		opts := PluginOptions{Limits: Limits{MaxFiles: 10}}

		_, err := TarPlugin().Decompress(context.Background(), data, opts)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSecurityViolation)
	})

	t.Run("file size", func(t *testing.T) {
		data := testutil.TarGz(t, testutil.File("big.bin", string(make([]byte, 2048))))
		opts := PluginOptions{Limits: Limits{MaxFileSize: 1024}}

		_, err := TarGzPlugin().Decompress(context.Background(), data, opts)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSecurityViolation)
	})

	t.Run("total size", func(t *testing.T) {
		data := testutil.Zip(t,
			testutil.File("a.bin", string(make([]byte, 600))),
			testutil.File("b.bin", string(make([]byte, 600))),
		)
		opts := PluginOptions{Limits: Limits{MaxSize: 1000}}

		_, err := ZipPlugin().Decompress(context.Background(), data, opts)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSecurityViolation)
	})

	t.Run("no limits", func(t *testing.T) {
		data := testutil.FileCountBombTar(t, 20)

		files, err := TarPlugin().Decompress(context.Background(), data, PluginOptions{})
		require.NoError(t, err)
		assert.Len(t, files, 20)
	})
}

// TestPlugins_Canceled tests that decoding stops when the context is canceled.
func TestPlugins_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := TarPlugin().Decompress(ctx, testutil.Tar(t, testutil.File("a", "a")), pluginOpts())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func withUTC(f File) File {
	f.Mtime = f.Mtime.UTC()
	return f
}
