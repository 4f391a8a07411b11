// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/clishell/clishell/internal/buffer"
	"github.com/clishell/clishell/internal/plugin"
)

const (
	// CaptureCommand is the reserved command name for output redirection.
	CaptureCommand = "capture"
	// CaptureSyntax is the synopsis of the capture command.
	CaptureSyntax = "[-t] [-e] buffer|file <name> <command> [<arg>...]"

	// ModeBuffer captures into a named buffer of the session.
	ModeBuffer = "buffer"
	// ModeFile captures into a file, truncating it.
	ModeFile = "file"
)

// ErrUnknownCaptureMode is returned for a capture mode other than buffer or file.
var ErrUnknownCaptureMode = errors.New("unknown capture mode")

func (d *Dispatcher) capture(ctx context.Context, stdio plugin.IO, args []string) (err error) {
	inv := &plugin.Invocation{IO: stdio, Name: CaptureCommand, Args: args}
	fs := plugin.NewFlagSet(CaptureCommand)
	tee := fs.BoolP("tee", "t", false, "also echo the output to the current output")
	withErrors := fs.BoolP("errors", "e", false, "also capture error output")
	rest, err := inv.ParseFlags(fs, CaptureSyntax, 3)
	if err != nil {
		return err
	}
	mode, name, argv := rest[0], rest[1], rest[2:]
	defer func() { d.metrics.ObserveCapture(mode, err) }()

	var sink buffer.Sink
	switch mode {
	case ModeBuffer:
		if err := d.buffers.StartCapture(name); err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, d.buffers.EndCapture(name))
		}()
		sink = d.buffers.Sink(name)
	case ModeFile:
		f, ferr := os.Create(name)
		if ferr != nil {
			return fmt.Errorf("capture file: %w", ferr)
		}
		defer func() {
			err = errors.Join(err, f.Close())
		}()
		sink = buffer.WriterSink(f, "file:"+name)
	default:
		return inv.Usage(CaptureSyntax, "%v: %q", ErrUnknownCaptureMode, mode)
	}

	nested := stdio
	nested.Stdout = sink
	if *tee {
		nested.Stdout = buffer.Tee(sink, stdio.Stdout)
	}
	if *withErrors {
		nested.Stderr = sink
		if *tee {
			nested.Stderr = buffer.Tee(sink, stdio.Stderr)
		}
	}
	return d.Exec(ctx, nested, argv)
}
