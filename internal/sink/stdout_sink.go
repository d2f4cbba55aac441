package sink

import (
	"context"
	"io"
	"os"
)

// StdoutSink writes artifacts to os.Stdout (for testing/dev).
type StdoutSink struct{}

func NewStdoutSink(_ map[string]interface{}) (Sink, error) {
	return &StdoutSink{}, nil
}

func (s *StdoutSink) Open(ctx context.Context, name string) (io.WriteCloser, error) {
	return &stdoutWriter{Writer: os.Stdout}, nil
}

type stdoutWriter struct {
	io.Writer
}

func (w *stdoutWriter) Close() error {
	// Don't close os.Stdout!
	return nil
}

func init() {
	Register("stdout", NewStdoutSink)
}
