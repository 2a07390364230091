package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync/atomic"
)

// maxLineSize bounds a single input line
const maxLineSize = 16 * 1024 * 1024

// LineSource reads commands line by line from a reader (a file or stdin)
type LineSource struct {
	name   string
	reader io.Reader

	read    atomic.Int64
	skipped atomic.Int64
}

// NewLineSource creates a source for r, name is only used in logs
func NewLineSource(name string, r io.Reader) *LineSource {
	return &LineSource{name: name, reader: r}
}

func (s *LineSource) GetName() string {
	return "lines(" + s.name + ")"
}

// Run implements ISource. Lines that can not be parsed are logged and skipped.
func (s *LineSource) Run(ctx context.Context, sink Sink) error {
	scanner := bufio.NewScanner(s.reader)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		lineNo++

		cmd, ok, err := ParseLine(scanner.Text())
		if err != nil {
			s.skipped.Add(1)
			Logger.Warningf("%s:%d: %v", s.name, lineNo, err)
			continue
		}
		if !ok {
			continue
		}

		if err := sink.Enqueue(cmd.Key(), cmd.DB, cmd.Encode()); err != nil {
			return fmt.Errorf("failed to enqueue line %d: %w", lineNo, err)
		}
		s.read.Add(1)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", s.name, err)
	}
	Logger.Infof("Finished reading %s: %d commands, %d skipped", s.name, s.read.Load(), s.skipped.Load())
	return nil
}

// Read returns the number of commands handed to the sink
func (s *LineSource) Read() int64 {
	return s.read.Load()
}

// Skipped returns the number of malformed lines
func (s *LineSource) Skipped() int64 {
	return s.skipped.Load()
}

// Close closes the underlying reader if it is an io.Closer
func (s *LineSource) Close() error {
	if c, ok := s.reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
