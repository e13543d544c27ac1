package sse

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
)

const (
	initialBufferSize = 64 * 1024

	// DefaultMaxLineSize is the longest line TeeReader accepts by default.
	DefaultMaxLineSize = 1024 * 1024
)

// TeeReader pumps a source io.Reader line by line into a LineParser while
// writing every raw byte verbatim to an optional destination io.Writer.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │  TeeReader.Run() │──▶│ destination io.Writer │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │    LineParser    │
// └──────────────────┘
//
// The destination (typically an io.Pipe backing an HTTP response) receives
// the exact stream, while the parser assembles events from it.
type TeeReader struct {
	src         io.Reader
	dest        io.Writer
	parser      *LineParser
	maxLineSize int
}

// Option configures a TeeReader.
type Option func(*TeeReader)

// WithMaxLineSize sets the longest accepted line in bytes. A longer line
// ends parsing; see Run.
func WithMaxLineSize(n int) Option {
	return func(r *TeeReader) {
		if n > 0 {
			r.maxLineSize = n
		}
	}
}

// NewTeeReader returns a TeeReader feeding parser from src. dest may be nil
// when no copy of the stream is needed.
func NewTeeReader(src io.Reader, dest io.Writer, parser *LineParser, opts ...Option) *TeeReader {
	r := &TeeReader{
		src:         src,
		dest:        dest,
		parser:      parser,
		maxLineSize: DefaultMaxLineSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads until src is exhausted, ctx is cancelled, or a read or write
// fails. It returns nil at EOF. Parse problems never stop Run; they are
// reported through the parser's dispatcher.
//
// Bytes reach dest exactly as read from src. A line longer than the maximum
// stops parsing, but the rest of src is still copied to dest before Run
// returns an error wrapping bufio.ErrTooLong.
func (r *TeeReader) Run(ctx context.Context) error {
	src := r.src
	if r.dest != nil {
		src = io.TeeReader(r.src, r.dest)
	}

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, min(initialBufferSize, r.maxLineSize)), r.maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.parser.ParseLine(scanner.Text())
	}

	err := scanner.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, bufio.ErrTooLong) && r.dest != nil {
		if _, copyErr := io.Copy(r.dest, r.src); copyErr != nil {
			return fmt.Errorf("relaying stream past long line: %w", errors.Join(err, copyErr))
		}
	}
	return fmt.Errorf("reading stream: %w", err)
}
