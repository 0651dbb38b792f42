package packer

import (
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/arloliu/xpack/compress"
	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/format"
	"github.com/arloliu/xpack/internal/options"
)

// LevelAuto lets the packer pick a level from the input size.
const LevelAuto = 0

// autoLevelLimit is the input size above which the automatic level drops by one.
const autoLevelLimit = 512 << 10

// Options is read, never modified, by packers.
type Options struct {
	CPU        format.CPU
	Method     format.Method // MethodNone picks the format's preferred method
	Level      int           // LevelAuto or 1..10
	Brute      bool          // try every method and filter
	UltraBrute bool          // Brute, and also the strongest levels
	Filter     format.Filter // FilterNone picks the format's preferred filter
	Force      bool
	Backup     bool
	Logger     *zap.Logger
	Progress   compress.Callback
	Config     *compress.Config
}

// Option configures Options.
type Option = options.Option[*Options]

// NewOptions returns the defaults with opts applied.
func NewOptions(opts ...Option) (*Options, error) {
	o := &Options{
		CPU:    format.CPUAuto,
		Method: format.MethodNone,
		Level:  LevelAuto,
		Filter: format.FilterNone,
		Logger: zap.NewNop(),
	}
	if err := options.Apply(o, opts...); err != nil {
		return nil, errors.Wrap(err, "options")
	}

	return o, nil
}

// WithCPU restricts loaders to cpu.
func WithCPU(cpu format.CPU) Option {
	return options.New(func(o *Options) error {
		if cpu > format.CPU386 {
			return errors.Wrapf(errs.ErrInvalidArgument, "cpu %d", cpu)
		}
		o.CPU = cpu

		return nil
	})
}

// WithMethod forces a compression method.
func WithMethod(m format.Method) Option {
	return options.New(func(o *Options) error {
		if m != format.MethodNone && !m.IsValid() {
			return errors.Wrapf(errs.ErrInvalidArgument, "method %d", m)
		}
		o.Method = m

		return nil
	})
}

// WithLevel sets the compression level.
func WithLevel(level int) Option {
	return options.New(func(o *Options) error {
		if level != LevelAuto && (level < compress.MinLevel || level > compress.MaxLevel) {
			return errors.Wrapf(errs.ErrInvalidArgument, "level %d", level)
		}
		o.Level = level

		return nil
	})
}

// WithBrute enables trying every method and filter the format supports.
func WithBrute(brute bool) Option {
	return options.NoError(func(o *Options) {
		o.Brute = brute
	})
}

// WithUltraBrute enables WithBrute and also retries every candidate at the
// two strongest compression levels.
func WithUltraBrute(ultra bool) Option {
	return options.NoError(func(o *Options) {
		o.UltraBrute = ultra
		if ultra {
			o.Brute = true
		}
	})
}

// WithFilter forces a filter; format.FilterNoop disables filtering.
func WithFilter(f format.Filter) Option {
	return options.New(func(o *Options) error {
		if f != format.FilterNone && f != format.FilterNoop && !f.IsCallTrick16() {
			return errors.Wrapf(errs.ErrInvalidArgument, "filter %d", f)
		}
		o.Filter = f

		return nil
	})
}

// WithForce packs files that would otherwise be refused.
func WithForce(force bool) Option {
	return options.NoError(func(o *Options) {
		o.Force = force
	})
}

// WithBackup keeps a backup of the original file.
func WithBackup(backup bool) Option {
	return options.NoError(func(o *Options) {
		o.Backup = backup
	})
}

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) Option {
	return options.New(func(o *Options) error {
		if lg == nil {
			return errors.Wrap(errs.ErrInvalidArgument, "nil logger")
		}
		o.Logger = lg

		return nil
	})
}

// WithProgress sets the progress sink. Reported values never decrease
// across the whole pack operation.
func WithProgress(cb compress.Callback) Option {
	return options.NoError(func(o *Options) {
		o.Progress = cb
	})
}

// WithConfig overlays codec parameters on the defaults.
func WithConfig(conf *compress.Config) Option {
	return options.New(func(o *Options) error {
		if conf != nil {
			merged := compress.DefaultConfig()
			merged.Overlay(conf)
			if err := merged.Validate(); err != nil {
				return err
			}
		}
		o.Config = conf

		return nil
	})
}

// LevelFor returns the effective level for an input of size bytes.
func (o *Options) LevelFor(size int) int {
	if o.Level != LevelAuto {
		return o.Level
	}
	if size < autoLevelLimit {
		return 8
	}

	return 7
}
