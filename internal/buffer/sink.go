// SPDX-License-Identifier: MPL-2.0

package buffer

import "io"

type (
	// Sink is the write target handed to a command handler. Handlers write to
	// it without knowing whether the text reaches the console or a buffer.
	Sink interface {
		io.Writer
		// Target names where the output goes ("console" or "buffer:<name>").
		Target() string
	}

	writerSink struct {
		w      io.Writer
		target string
	}

	bufferSink struct {
		store *Store
		name  string
	}

	teeSink struct {
		Sink
		w io.Writer
	}
)

// ConsoleSink passes every write straight through to w.
func ConsoleSink(w io.Writer) Sink {
	if s, ok := w.(Sink); ok {
		return s
	}
	return &writerSink{w: w, target: "console"}
}

// WriterSink wraps an arbitrary writer, such as a capture file, under the
// given target label.
func WriterSink(w io.Writer, target string) Sink {
	return &writerSink{w: w, target: target}
}

// Sink returns a sink that appends every write to the active capture of name.
func (s *Store) Sink(name string) Sink {
	return &bufferSink{store: s, name: name}
}

// Tee returns a sink that writes to s and also echoes to w.
func Tee(s Sink, w io.Writer) Sink {
	return &teeSink{Sink: s, w: w}
}

func (c *writerSink) Write(p []byte) (int, error) { return c.w.Write(p) }

func (c *writerSink) Target() string { return c.target }

func (b *bufferSink) Write(p []byte) (int, error) {
	if err := b.store.Append(b.name, string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (b *bufferSink) Target() string { return "buffer:" + b.name }

func (t *teeSink) Write(p []byte) (int, error) {
	n, err := t.Sink.Write(p)
	if err != nil {
		return n, err
	}
	if _, err := t.w.Write(p); err != nil {
		return n, err
	}
	return n, nil
}
