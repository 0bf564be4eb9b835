package decompress

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// compressedTarPlugin decodes a tar stream wrapped in a compression codec.
// The codec is selected by its magic number; a compressed payload that is not
// a tar archive yields no records.
type compressedTarPlugin struct {
	name  string
	magic []byte
	open  func(r io.Reader) (io.ReadCloser, error)
}

// TarGzPlugin returns the plugin for gzip-compressed tar archives.
func TarGzPlugin() FormatPlugin {
	return &compressedTarPlugin{
		name:  "tar.gz",
		magic: magicGzip,
		open: func(r io.Reader) (io.ReadCloser, error) {
			return pgzip.NewReader(r)
		},
	}
}

// TarBz2Plugin returns the plugin for bzip2-compressed tar archives.
func TarBz2Plugin() FormatPlugin {
	return &compressedTarPlugin{
		name:  "tar.bz2",
		magic: magicBzip2,
		open: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(bzip2.NewReader(r)), nil
		},
	}
}

// TarZstPlugin returns the plugin for zstd-compressed tar archives.
func TarZstPlugin() FormatPlugin {
	return &compressedTarPlugin{
		name:  "tar.zst",
		magic: magicZstd,
		open: func(r io.Reader) (io.ReadCloser, error) {
			dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
			if err != nil {
				return nil, err
			}
			return dec.IOReadCloser(), nil
		},
	}
}

// TarXzPlugin returns the plugin for xz-compressed tar archives.
// It is not part of DefaultPlugins.
func TarXzPlugin() FormatPlugin {
	return &compressedTarPlugin{
		name:  "tar.xz",
		magic: magicXz,
		open: func(r io.Reader) (io.ReadCloser, error) {
			xr, err := xz.NewReader(r)
			if err != nil {
				return nil, err
			}
			return io.NopCloser(xr), nil
		},
	}
}

// TarLz4Plugin returns the plugin for lz4-framed tar archives.
// It is not part of DefaultPlugins.
func TarLz4Plugin() FormatPlugin {
	return &compressedTarPlugin{
		name:  "tar.lz4",
		magic: magicLz4,
		open: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(lz4.NewReader(r)), nil
		},
	}
}

// Name implements FormatPlugin.
func (p *compressedTarPlugin) Name() string { return p.name }

// Decompress implements FormatPlugin.
func (p *compressedTarPlugin) Decompress(ctx context.Context, input []byte, opts PluginOptions) ([]File, error) {
	if !bytes.HasPrefix(input, p.magic) {
		return nil, nil
	}

	rc, err := p.open(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s stream: %w: %w", p.name, ErrArchiveCorrupted, err)
	}
	defer rc.Close()

	br := bufio.NewReaderSize(rc, tarHeaderSize)
	head, err := br.Peek(tarMagicOffset + 5)
	if err != nil {
		if errors.Is(err, io.EOF) {
			opts.logger().Debug("compressed payload is not a tar archive", "plugin", p.name)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decompress %s stream: %w: %w", p.name, ErrArchiveCorrupted, err)
	}

	if !isTar(head) {
		opts.logger().Debug("compressed payload is not a tar archive", "plugin", p.name)
		return nil, nil
	}

	return decodeTar(ctx, br, opts)
}
