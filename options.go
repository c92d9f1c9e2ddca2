package codearc

import (
	"log/slog"

	"github.com/hupe1980/codearc/internal/compress"
	"github.com/hupe1980/codearc/internal/fs"
	"github.com/hupe1980/codearc/resource"
)

// DefaultMaxCapacity bounds a write session when no explicit capacity is
// configured.
const DefaultMaxCapacity = 64 << 20

// Config selects the archive file and the session mode. An archive is
// opened either to store entries or to load them; the two modes never mix
// within one session.
type Config struct {
	// Path is the archive file location.
	Path string

	// Store opens the archive for a write session. Any pre-existing file
	// at Path is removed.
	Store bool

	// Load opens the archive for read. A missing file is not an error:
	// Initialize returns nil and the runtime proceeds without an archive.
	Load bool
}

// ReadConfig returns a Config for loading the archive at path.
func ReadConfig(path string) Config {
	return Config{Path: path, Load: true}
}

// WriteConfig returns a Config for a fresh write session at path.
func WriteConfig(path string) Config {
	return Config{Path: path, Store: true}
}

// Compression selects the envelope applied by Publish. Fetch auto-detects,
// so mixed fleets can change this without coordination.
type Compression uint8

const (
	CompressNone Compression = iota
	CompressLZ4
	CompressZSTD
)

func (c Compression) envelope() compress.Type {
	switch c {
	case CompressLZ4:
		return compress.LZ4
	case CompressZSTD:
		return compress.ZSTD
	default:
		return compress.None
	}
}

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	fsys             fs.FileSystem
	maxCapacity      int
	mappedReads      bool
	verifyOnly       bool
	compression      Compression
	limiter          *resource.Limiter
	statsOnClose     bool
}

// Option configures archive open and transfer behavior.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := codearc.NewJSONLogger(slog.LevelInfo)
//	arc := codearc.Initialize(codearc.ReadConfig(path), rt, codearc.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &codearc.BasicMetricsCollector{}
//	arc := codearc.Initialize(cfg, rt, codearc.WithMetricsCollector(metrics))
//	// ... use arc ...
//	stats := metrics.GetStats()
//	fmt.Printf("Loads: %d, Avg latency: %dns\n", stats.LoadCount, stats.LoadAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithFS swaps the filesystem used for archive files. Tests use this to
// inject failures.
func WithFS(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys == nil {
			fsys = fs.Default
		}
		o.fsys = fsys
	}
}

// WithMaxCapacity bounds the size of a write session. Stores that would
// grow the archive past the limit fail with ErrCapacity and the session
// keeps whatever was stored before.
func WithMaxCapacity(bytes int) Option {
	return func(o *options) {
		if bytes > 0 {
			o.maxCapacity = bytes
		}
	}
}

// WithMappedReads controls whether a load session maps the archive file
// into memory or reads it into the heap. Mapping is the default.
func WithMappedReads(enabled bool) Option {
	return func(o *options) {
		o.mappedReads = enabled
	}
}

// WithVerifyOnly opens a load session that resolves everything but
// installs nothing. Used by fleet verification jobs.
func WithVerifyOnly() Option {
	return func(o *options) {
		o.verifyOnly = true
	}
}

// WithTransferCompression selects the compression applied by Publish.
func WithTransferCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithResourceLimiter bounds verification parallelism and transfer
// bandwidth. Pass nil to remove all limits.
func WithResourceLimiter(l *resource.Limiter) Option {
	return func(o *options) {
		o.limiter = l
	}
}

// WithLogStatsOnClose logs a Stats snapshot when the archive closes.
func WithLogStatsOnClose() Option {
	return func(o *options) {
		o.statsOnClose = true
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		fsys:             fs.Default,
		maxCapacity:      DefaultMaxCapacity,
		mappedReads:      true,
		compression:      CompressZSTD,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
