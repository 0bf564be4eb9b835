package decompress

import (
	"log/slog"
	"runtime"

	"github.com/jmgilman/go/fs/billy"
	"github.com/jmgilman/go/fs/core"
)

// Option configures a Decompress, Aggregate, Transform, or Materialize call.
type Option func(*config)

// FilterFunc decides whether a record is kept. It sees paths after stripping.
type FilterFunc func(File) bool

// MapFunc replaces a record with a transformed copy. Its result is not validated.
type MapFunc func(File) File

// config is the per-extraction configuration. It is built once by newConfig
// and passed by value to every stage.
type config struct {
	strip       int
	filter      FilterFunc
	mapper      MapFunc
	plugins     []FormatPlugin
	pluginsSet  bool
	fs          core.FS
	localFS     bool
	logger      *slog.Logger
	concurrency int
	limits      Limits
	validators  []Validator
	preserve    bool
}

// WithStrip removes n leading path components from every record.
// Negative values are treated as zero.
func WithStrip(n int) Option {
	return func(c *config) {
		c.strip = max(n, 0)
	}
}

// WithFilter keeps only records for which fn returns true.
func WithFilter(fn FilterFunc) Option {
	return func(c *config) {
		c.filter = fn
	}
}

// WithMap transforms every record that survives stripping and filtering.
func WithMap(fn MapFunc) Option {
	return func(c *config) {
		c.mapper = fn
	}
}

// WithPlugins replaces the default plugin set. Calling it with no plugins
// configures an explicit empty set, which extracts nothing.
func WithPlugins(plugins ...FormatPlugin) Option {
	return func(c *config) {
		c.plugins = append([]FormatPlugin(nil), plugins...)
		c.pluginsSet = true
	}
}

// WithFilesystem sets the filesystem used to read path inputs.
// The default is the local filesystem.
func WithFilesystem(fsys core.FS) Option {
	return func(c *config) {
		c.fs = fsys
	}
}

// WithLogger sets the logger used for debug and progress messages.
// The default discards all output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithConcurrency bounds the number of regular files written in parallel.
// Values below one fall back to GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(c *config) {
		c.concurrency = n
	}
}

// WithLimits sets the extraction limits passed to plugins. There are no limits
// by default; WithLimits(DefaultLimits()) is a reasonable choice for untrusted input.
func WithLimits(limits Limits) Option {
	return func(c *config) {
		c.limits = limits
	}
}

// WithValidators adds validators that plugins run on every entry and on the
// running archive totals, after the checks derived from Limits. Plugins run
// concurrently, so a validator may be called from several goroutines.
func WithValidators(validators ...Validator) Option {
	return func(c *config) {
		c.validators = append(c.validators, validators...)
	}
}

// WithPreservePermissions applies the archive's permission bits exactly,
// including setuid and setgid, bypassing the process umask. Directory modes are
// applied after all entries are written.
func WithPreservePermissions(preserve bool) Option {
	return func(c *config) {
		c.preserve = preserve
	}
}

// newConfig applies opts over the defaults.
func newConfig(opts ...Option) config {
	var c config

	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}

	if !c.pluginsSet {
		c.plugins = DefaultPlugins()
	}

	if c.fs == nil {
		c.fs = billy.NewLocal()
		c.localFS = true
	}

	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}

	if c.concurrency < 1 {
		c.concurrency = runtime.GOMAXPROCS(0)
	}

	return c
}

// pluginOptions returns the subset of the configuration visible to plugins.
func (c config) pluginOptions() PluginOptions {
	return PluginOptions{
		Limits:     c.limits,
		Validators: c.validators,
		Logger:     c.logger,
	}
}
