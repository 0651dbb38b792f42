package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/go-faster/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/packer"
)

type mode int

const (
	modePack mode = iota
	modeUnpack
	modeTest
	modeList
)

func (m mode) String() string {
	switch m {
	case modePack:
		return "pack"
	case modeUnpack:
		return "unpack"
	case modeTest:
		return "test"
	case modeList:
		return "list"
	default:
		return "unknown"
	}
}

// runner processes the command line files one by one. A failing file does
// not stop the others.
type runner struct {
	mode   mode
	output string
	opts   *packer.Options
	lg     *zap.Logger
	stdout io.Writer

	processed int
	warnings  int
	failed    int
}

func newRunner(c *cli.Context, stdout io.Writer) (*runner, error) {
	m, err := modeFrom(c)
	if err != nil {
		return nil, err
	}

	lg := newLogger(c.App.ErrWriter, logLevel(c.Bool("quiet"), c.Bool("verbose")))
	opts, err := optionsFrom(c, lg)
	if err != nil {
		return nil, err
	}

	output := c.String("output")
	if output != "" && c.NArg() > 1 {
		return nil, errors.Wrap(errs.ErrInvalidArgument, "--output needs exactly one input file")
	}

	return &runner{mode: m, output: output, opts: opts, lg: lg, stdout: stdout}, nil
}

// isWarning reports whether err only means the file was left alone.
func isWarning(err error) bool {
	return errors.Is(err, errs.ErrCantPack) ||
		errors.Is(err, errs.ErrNotPacked) ||
		errors.Is(err, errs.ErrUnknownExecutableFormat)
}

func (r *runner) exitCode() int {
	switch {
	case r.failed > 0:
		return exitError
	case r.warnings > 0:
		return exitWarning
	default:
		return exitOK
	}
}

func (r *runner) processAll(paths []string) error {
	var result *multierror.Error
	if r.mode == modeList {
		fmt.Fprintf(r.stdout, "%12s    %12s  %7s  %-8s %-8s %s\n", "Unpacked", "Packed", "Ratio", "Format", "Method", "Name")
	}

	for _, path := range paths {
		err := r.process(path)
		switch {
		case err == nil:
			r.processed++
		case isWarning(err):
			r.warnings++
			r.lg.Warn("skipped", zap.String("file", path), zap.Error(err))
		default:
			r.failed++
			result = multierror.Append(result, errors.Wrap(err, path))
		}
	}

	r.lg.Debug("done",
		zap.Stringer("mode", r.mode),
		zap.Int("processed", r.processed),
		zap.Int("warnings", r.warnings),
		zap.Int("failed", r.failed),
	)

	return result.ErrorOrNil()
}

func (r *runner) process(path string) error {
	in, err := packer.OpenInput(path)
	if err != nil {
		return err
	}
	defer in.Close()

	if r.mode == modePack {
		p, err := packer.Detect(in, r.opts)
		if err != nil {
			return err
		}

		return r.write(path, in, p, p.Pack)
	}

	p, err := packer.DetectUnpack(in, r.opts)
	if err != nil {
		return err
	}

	switch r.mode {
	case modeUnpack:
		return r.write(path, in, p, p.Unpack)
	case modeTest:
		if err := p.Test(); err != nil {
			return err
		}
		fmt.Fprintf(r.stdout, "testing %s [OK]\n", path)

		return nil
	default:
		return r.list(path, in, p)
	}
}

type headered interface {
	Header() packer.Header
}

func (r *runner) list(path string, in *packer.FileInput, p packer.Packer) error {
	h, ok := p.(headered)
	if !ok {
		return errors.Errorf("%s: listing is not supported", p.Name())
	}
	ph := h.Header()
	// formats that store the whole file as the image leave UFileSize unset
	usize := int64(ph.UFileSize)
	if usize == 0 {
		usize = int64(ph.ULen)
	}
	fmt.Fprintf(r.stdout, "%12d -> %12d  %7s  %-8s %-8s %s\n",
		usize, in.Size(), ratio(in.Size(), usize), p.Name(), ph.Method.ShortName(), path)

	return nil
}

// write runs fn into a temporary file and moves it over the destination
// only when fn succeeds.
func (r *runner) write(path string, in *packer.FileInput, p packer.Packer, fn func(packer.OutputFile) error) error {
	dest, err := r.destination(path)
	if err != nil {
		return err
	}
	st, err := in.Stat()
	if err != nil {
		return errors.Wrap(err, "stat input")
	}

	tmp, err := packer.CreateTempOutput(dest)
	if err != nil {
		return err
	}
	pending.Store(tmp, struct{}{})
	defer pending.Delete(tmp)
	defer tmp.Abort()

	if err := fn(tmp); err != nil {
		return err
	}
	if r.opts.Backup && dest == path {
		if err := backup(path); err != nil {
			return err
		}
	}
	if err := tmp.Commit(st.Mode().Perm()); err != nil {
		return err
	}

	before, after := in.Size(), tmp.BytesWritten()
	fmt.Fprintf(r.stdout, "%12s -> %12s  %7s  %-8s %s\n",
		humanize.Bytes(uint64(before)), humanize.Bytes(uint64(after)), ratio(after, before), p.Name(), dest)

	return nil
}

func (r *runner) destination(path string) (string, error) {
	if r.output == "" {
		return path, nil
	}
	if _, err := os.Stat(r.output); err == nil && !r.opts.Force {
		return "", errors.Errorf("%s: already exists, use --force to overwrite", r.output)
	}

	return r.output, nil
}

// backup hard links path to its backup name, replacing an older backup.
func backup(path string) error {
	name := packer.BackupName(path)
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove old backup")
	}
	if err := os.Link(path, name); err != nil {
		return errors.Wrap(err, "backup")
	}

	return nil
}

func ratio(part, whole int64) string {
	if whole == 0 {
		return "-"
	}

	return fmt.Sprintf("%.2f%%", 100*float64(part)/float64(whole))
}
