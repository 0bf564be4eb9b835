package decompress

import (
	"bytes"
	"context"
	"log/slog"
)

// FormatPlugin decodes one archive format into file records.
//
// A plugin receives the whole input buffer. When the buffer is not in the
// plugin's format it returns no records and no error, so every configured
// plugin can be run against the same input. Plugins never write to the
// filesystem; materialization is done by the caller.
type FormatPlugin interface {
	// Name identifies the plugin in errors and logs.
	Name() string

	// Decompress decodes input into records in archive order.
	Decompress(ctx context.Context, input []byte, opts PluginOptions) ([]File, error)
}

// PluginOptions carries the settings a plugin may honor.
type PluginOptions struct {
	// Limits bounds the entries a plugin will decode. The zero value means no limits.
	Limits Limits

	// Validators are run after the checks derived from Limits.
	Validators []Validator

	// Logger receives debug output. It is never nil when called through Aggregate.
	Logger *slog.Logger
}

// logger returns opts.Logger or a discarding logger.
func (o PluginOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// PluginFunc adapts a function into a FormatPlugin.
type PluginFunc struct {
	name string
	fn   func(ctx context.Context, input []byte, opts PluginOptions) ([]File, error)
}

// NewPluginFunc creates a FormatPlugin named name that calls fn.
func NewPluginFunc(name string, fn func(ctx context.Context, input []byte, opts PluginOptions) ([]File, error)) *PluginFunc {
	return &PluginFunc{name: name, fn: fn}
}

// Name implements FormatPlugin.
func (p *PluginFunc) Name() string { return p.name }

// Decompress implements FormatPlugin.
func (p *PluginFunc) Decompress(ctx context.Context, input []byte, opts PluginOptions) ([]File, error) {
	return p.fn(ctx, input, opts)
}

// DefaultPlugins returns the built-in plugin set in its default order:
// tar, tar+bzip2, tar+gzip, tar+zstd, zip.
// The xz and lz4 plugins are available but must be added explicitly.
func DefaultPlugins() []FormatPlugin {
	return []FormatPlugin{
		TarPlugin(),
		TarBz2Plugin(),
		TarGzPlugin(),
		TarZstPlugin(),
		ZipPlugin(),
	}
}

// Magic numbers of the supported containers and codecs.
var (
	magicGzip  = []byte{0x1f, 0x8b}
	magicBzip2 = []byte("BZh")
	magicZstd  = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicXz    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	magicLz4   = []byte{0x04, 0x22, 0x4d, 0x18}
	magicZip   = [][]byte{
		[]byte("PK\x03\x04"),
		[]byte("PK\x05\x06"),
		[]byte("PK\x07\x08"),
	}
)

const (
	tarMagicOffset = 257
	tarHeaderSize  = 512
)

// isTar reports whether buf starts with a ustar or GNU tar header.
func isTar(buf []byte) bool {
	if len(buf) < tarMagicOffset+5 {
		return false
	}
	return bytes.Equal(buf[tarMagicOffset:tarMagicOffset+5], []byte("ustar"))
}

func isZip(buf []byte) bool {
	for _, m := range magicZip {
		if bytes.HasPrefix(buf, m) {
			return true
		}
	}
	return false
}
