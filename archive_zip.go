package decompress

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"math"
	"strings"

	"github.com/klauspost/compress/zip"
)

// maxSymlinkTarget bounds the size of a symlink target stored as zip entry content.
const maxSymlinkTarget = 4096

// zipPlugin decodes zip archives.
type zipPlugin struct{}

// ZipPlugin returns the plugin for zip archives.
func ZipPlugin() FormatPlugin {
	return zipPlugin{}
}

// Name implements FormatPlugin.
func (zipPlugin) Name() string { return "zip" }

// Decompress implements FormatPlugin.
// Symlinks are recognised from the Unix mode stored in the external attributes;
// their target is the entry content.
func (zipPlugin) Decompress(ctx context.Context, input []byte, opts PluginOptions) ([]File, error) {
	if !isZip(input) {
		return nil, nil
	}

	log := opts.logger()
	zr, err := zip.NewReader(bytes.NewReader(input), int64(len(input)))
	if zr == nil {
		return nil, fmt.Errorf("failed to read zip directory: %w: %w", ErrArchiveCorrupted, err)
	}
	if err != nil {
		log.Debug("zip archive reported a non-fatal problem", "error", err)
	}

	er := newEntryReader(opts.Limits, opts.Validators...)
	files := make([]File, 0, len(zr.File))
	for _, zf := range zr.File {
		if err := isDone(ctx, "zip decoding"); err != nil {
			return nil, err
		}

		file := File{
			Path:  zf.Name,
			Mode:  zf.Mode() & (fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky),
			Mtime: zf.Modified,
		}

		mode := zf.Mode()
		switch {
		case mode.IsDir() || strings.HasSuffix(zf.Name, "/"):
			file.Type = TypeDirectory
		case mode&fs.ModeSymlink != 0:
			file.Type = TypeSymlink
		default:
			file.Type = TypeFile
		}

		declared := int64(math.MaxInt64)
		if zf.UncompressedSize64 < math.MaxInt64 {
			declared = int64(zf.UncompressedSize64)
		}

		var size int64
		if file.Type == TypeFile {
			size = declared
		}
		if err := er.add(zf.Name, size); err != nil {
			return nil, err
		}

		if file.Type == TypeDirectory {
			files = append(files, file)
			continue
		}

		data, err := readZipEntry(zf, er, declared, file.Type)
		if err != nil {
			return nil, err
		}

		if file.Type == TypeSymlink {
			file.Linkname = string(data)
		} else {
			file.Data = data
		}

		files = append(files, file)
	}

	return files, nil
}

// readZipEntry reads the content of a file or symlink entry.
func readZipEntry(zf *zip.File, er *entryReader, declared int64, typ FileType) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open zip entry %s: %w: %w", zf.Name, ErrArchiveCorrupted, err)
	}
	defer rc.Close()

	if typ == TypeSymlink && declared > maxSymlinkTarget {
		return nil, fmt.Errorf("symlink target of %s is %d bytes: %w", zf.Name, declared, ErrSecurityViolation)
	}

	return er.read(zf.Name, rc, declared)
}
