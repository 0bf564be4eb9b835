package decompress

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
)

// tarPlugin decodes uncompressed tar archives.
type tarPlugin struct{}

// TarPlugin returns the plugin for uncompressed tar archives.
func TarPlugin() FormatPlugin {
	return tarPlugin{}
}

// Name implements FormatPlugin.
func (tarPlugin) Name() string { return "tar" }

// Decompress implements FormatPlugin.
func (tarPlugin) Decompress(ctx context.Context, input []byte, opts PluginOptions) ([]File, error) {
	if !isTar(input) {
		return nil, nil
	}
	return decodeTar(ctx, bytes.NewReader(input), opts)
}

// decodeTar reads every supported entry from a tar stream.
// Entry types other than regular files, directories, symlinks and hard links are skipped.
func decodeTar(ctx context.Context, r io.Reader, opts PluginOptions) ([]File, error) {
	log := opts.logger()
	tr := tar.NewReader(r)
	er := newEntryReader(opts.Limits, opts.Validators...)

	var files []File
	for {
		if err := isDone(ctx, "tar decoding"); err != nil {
			return nil, err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar header: %w: %w", ErrArchiveCorrupted, err)
		}

		file, ok := tarRecord(hdr)
		if !ok {
			log.Debug("skipping unsupported tar entry", "path", hdr.Name, "typeflag", string(hdr.Typeflag))
			continue
		}

		var size int64
		if file.Type == TypeFile {
			size = hdr.Size
		}
		if err := er.add(hdr.Name, size); err != nil {
			return nil, err
		}

		if file.Type == TypeFile {
			data, err := er.read(hdr.Name, tr, hdr.Size)
			if err != nil {
				return nil, err
			}
			file.Data = data
		}

		files = append(files, file)
	}

	return files, nil
}

// tarRecord converts a tar header into a record without content.
func tarRecord(hdr *tar.Header) (File, bool) {
	file := File{
		Path:  hdr.Name,
		Mode:  hdr.FileInfo().Mode() & (fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky),
		Mtime: hdr.ModTime,
	}

	switch hdr.Typeflag {
	case tar.TypeReg, '\x00':
		file.Type = TypeFile
	case tar.TypeDir:
		file.Type = TypeDirectory
	case tar.TypeSymlink:
		file.Type = TypeSymlink
		file.Linkname = hdr.Linkname
	case tar.TypeLink:
		file.Type = TypeLink
		file.Linkname = hdr.Linkname
	default:
		return File{}, false
	}

	return file, true
}

// isDone returns a wrapped context cancellation error if ctx is done.
func isDone(ctx context.Context, action string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s canceled: %w", action, ctx.Err())
	default:
		return nil
	}
}
