package xlib

import (
	"github.com/spf13/viper"
)

const (
	defaultBufferSize = 16384
	minBufferSize     = 2048
)

// Config holds the environment a display is opened with. It is read once per
// Open.
type Config struct {
	// Display is the display name, from $DISPLAY.
	Display string `mapstructure:"display" yaml:"display"`

	// BufferSize is the output buffer size in bytes. $XLIBBUFFERSIZE gives
	// it in KiB.
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size"`

	// SkipARGBVisuals drops the visuals of 32 bit depths from the setup,
	// set when $XLIB_SKIP_ARGB_VISUALS exists.
	SkipARGBVisuals bool `mapstructure:"-" yaml:"skip_argb_visuals"`

	// Synchronous makes every request wait for the server, from
	// $XLIB_SYNCHRONOUS.
	Synchronous bool `mapstructure:"synchronous" yaml:"synchronous"`

	XAuthority string `mapstructure:"xauthority" yaml:"xauthority"`
	Home       string `mapstructure:"home" yaml:"home"`
}

var envBindings = map[string]string{
	"display":           "DISPLAY",
	"buffer_size":       "XLIBBUFFERSIZE",
	"skip_argb_visuals": "XLIB_SKIP_ARGB_VISUALS",
	"synchronous":       "XLIB_SYNCHRONOUS",
	"xauthority":        "XAUTHORITY",
	"home":              "HOME",
}

// LoadConfig reads the configuration from the environment. Malformed values
// are logged and left at their zero value.
func LoadConfig() Config {
	v := viper.New()
	v.AllowEmptyEnv(true)
	for key, env := range envBindings {
		// BindEnv only fails without a key.
		_ = v.BindEnv(key, env)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Warn("ignoring malformed X environment", "err", err)
	}
	// Only the presence of the variable matters.
	cfg.SkipARGBVisuals = v.IsSet("skip_argb_visuals")
	if v.IsSet("buffer_size") {
		cfg.BufferSize *= 1024
	} else {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.BufferSize < minBufferSize {
		cfg.BufferSize = minBufferSize
	}
	return cfg
}

type options struct {
	cfg            *Config
	locking        Locking
	bufSize        int
	syncMargin     int
	synchronous    *bool
	errorHandler   ErrorHandler
	ioErrorHandler IOErrorHandler
	exitHandler    ExitHandler
	keys           KeyTranslator
	resourceParser ResourceParser
}

// Option configures a display at Open.
type Option func(*options)

// WithConfig uses cfg instead of reading the environment.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = &cfg }
}

// WithThreads makes the display safe for use from several goroutines.
func WithThreads() Option {
	return func(o *options) { o.locking = MutexLocking() }
}

// WithLocking installs a custom lock strategy.
func WithLocking(l Locking) Option {
	return func(o *options) { o.locking = l }
}

// WithBufferSize sets the output buffer size in bytes. Sizes below 2048 are
// raised to 2048.
func WithBufferSize(n int) Option {
	return func(o *options) { o.bufSize = n }
}

// WithSyncMargin sets how many requests before the 16 bit sequence numbers
// would become ambiguous a round trip is forced. Values smaller than what
// one output buffer can hold are raised.
func WithSyncMargin(n int) Option {
	return func(o *options) { o.syncMargin = n }
}

// WithSynchronous turns synchronous mode on or off.
func WithSynchronous(on bool) Option {
	return func(o *options) { o.synchronous = &on }
}

// WithErrorHandler installs the protocol error handler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) { o.errorHandler = h }
}

// WithIOErrorHandler installs the I/O error handler.
func WithIOErrorHandler(h IOErrorHandler) Option {
	return func(o *options) { o.ioErrorHandler = h }
}

// WithExitHandler installs the handler run after the I/O error handler.
func WithExitHandler(h ExitHandler) Option {
	return func(o *options) { o.exitHandler = h }
}

// WithKeyTranslator installs the keysym translation module.
func WithKeyTranslator(k KeyTranslator) Option {
	return func(o *options) { o.keys = k }
}

// WithResourceParser installs the resource database parser used for the
// RESOURCE_MANAGER property.
func WithResourceParser(p ResourceParser) Option {
	return func(o *options) { o.resourceParser = p }
}

func (o *options) bufferSize() int {
	n := o.cfg.BufferSize
	if o.bufSize > 0 {
		n = o.bufSize
	}
	if n < minBufferSize {
		n = minBufferSize
	}
	return n
}

func (o *options) margin(bufSize int) uint64 {
	m := defaultSyncMargin(bufSize)
	if o.syncMargin > 0 && uint64(o.syncMargin) > m {
		m = uint64(o.syncMargin)
	}
	if m > seqWrap-1 {
		m = seqWrap - 1
	}
	return m
}
