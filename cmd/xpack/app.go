package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arloliu/xpack/compress"
	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/format"
	"github.com/arloliu/xpack/packer"
)

const version = "0.1.0"

func newApp(stdout, stderr io.Writer, code *int) *cli.App {
	cli.VersionFlag = &cli.BoolFlag{Name: "version", Aliases: []string{"V"}, Usage: "print version information"}
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintf(c.App.Writer, "xpack %s\n", version)
		for _, m := range []format.Method{format.MethodNRV2BLE32, format.MethodLZMA, format.MethodDeflate, format.MethodZstd, format.MethodLZ4} {
			fmt.Fprintf(c.App.Writer, "  %-8s %s\n", m.ShortName(), compress.Version(m))
		}
	}

	flags := []cli.Flag{
		&cli.BoolFlag{Name: "decompress", Aliases: []string{"d"}, Usage: "restore packed files"},
		&cli.BoolFlag{Name: "test", Aliases: []string{"t"}, Usage: "test packed files"},
		&cli.BoolFlag{Name: "list", Aliases: []string{"l"}, Usage: "list packed files"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write to `FILE` instead of replacing the input"},
		&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "force packing of suspicious files and overwrite outputs", EnvVars: []string{"XPACK_FORCE"}},
		&cli.BoolFlag{Name: "backup", Aliases: []string{"k"}, Usage: "keep a backup of replaced files", EnvVars: []string{"XPACK_BACKUP"}},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "only report errors"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log every compression trial"},
		&cli.BoolFlag{Name: "brute", Usage: "try every method and filter", EnvVars: []string{"XPACK_BRUTE"}},
		&cli.BoolFlag{Name: "ultra-brute", Usage: "try even more variants than --brute", EnvVars: []string{"XPACK_ULTRA_BRUTE"}},
		&cli.BoolFlag{Name: "8086", Usage: "make the loader run on an 8086", EnvVars: []string{"XPACK_8086"}},
		&cli.StringFlag{Name: "method", Usage: "compression `METHOD` (nrv2b, nrv2d, nrv2e, lzma, deflate, zstd, lz4)", EnvVars: []string{"XPACK_METHOD"}},
		&cli.IntFlag{Name: "filter", Usage: "call filter `ID`, 0 disables filtering", EnvVars: []string{"XPACK_FILTER"}},
		&cli.IntFlag{Name: "level", Usage: "compression `LEVEL` 1..10, 0 picks one from the file size", EnvVars: []string{"XPACK_LEVEL"}},
		&cli.BoolFlag{Name: "best", Usage: "compress best"},
	}
	for i := 1; i <= 9; i++ {
		flags = append(flags, &cli.BoolFlag{Name: strconv.Itoa(i), Usage: "compression level " + strconv.Itoa(i), Hidden: i > 1 && i < 9})
	}

	return &cli.App{
		Name:            "xpack",
		Usage:           "the executable packer",
		UsageText:       "xpack [options] file...",
		Version:         version,
		Writer:          stdout,
		ErrWriter:       stderr,
		HideHelpCommand: true,
		Flags:           flags,
		Before: func(c *cli.Context) error {
			return compress.Init()
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.ShowAppHelp(c)
			}

			r, err := newRunner(c, stdout)
			if err != nil {
				*code = exitError
				return err
			}
			defer func() { _ = r.lg.Sync() }()

			err = r.processAll(c.Args().Slice())
			*code = r.exitCode()

			return err
		},
	}
}

func modeFrom(c *cli.Context) (mode, error) {
	var modes []mode
	if c.Bool("decompress") {
		modes = append(modes, modeUnpack)
	}
	if c.Bool("test") {
		modes = append(modes, modeTest)
	}
	if c.Bool("list") {
		modes = append(modes, modeList)
	}

	switch len(modes) {
	case 0:
		return modePack, nil
	case 1:
		return modes[0], nil
	default:
		return 0, errors.Wrap(errs.ErrInvalidArgument, "only one of --decompress, --test and --list may be given")
	}
}

// levelFrom prefers --best, then the highest digit flag, then --level.
func levelFrom(c *cli.Context) int {
	if c.Bool("best") {
		return compress.LevelBest
	}
	for i := 9; i >= 1; i-- {
		if c.Bool(strconv.Itoa(i)) {
			return i
		}
	}

	return c.Int("level")
}

func optionsFrom(c *cli.Context, lg *zap.Logger) (*packer.Options, error) {
	opts := []packer.Option{
		packer.WithLevel(levelFrom(c)),
		packer.WithBrute(c.Bool("brute")),
		packer.WithUltraBrute(c.Bool("ultra-brute")),
		packer.WithForce(c.Bool("force")),
		packer.WithBackup(c.Bool("backup")),
		packer.WithLogger(lg),
	}
	if c.Bool("8086") {
		opts = append(opts, packer.WithCPU(format.CPU8086))
	}
	if name := c.String("method"); name != "" {
		m, ok := format.ParseMethod(name)
		if !ok {
			return nil, errors.Wrapf(errs.ErrInvalidArgument, "unknown method %q", name)
		}
		opts = append(opts, packer.WithMethod(m))
	}
	if c.IsSet("filter") {
		opts = append(opts, packer.WithFilter(format.Filter(c.Int("filter"))))
	}

	return packer.NewOptions(opts...)
}

func logLevel(quiet, verbose bool) zapcore.Level {
	switch {
	case quiet:
		return zapcore.ErrorLevel
	case verbose:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func newLogger(w io.Writer, level zapcore.Level) *zap.Logger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""

	return zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level))
}
