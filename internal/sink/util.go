package sink

import "io"

// uploadWriter couples a compression writer over a pipe with the
// background upload consuming it. Close flushes the compressor, closes
// the pipe, then reports the upload's outcome.
type uploadWriter struct {
	compressor io.WriteCloser
	pipe       *io.PipeWriter
	errCh      chan error
}

func (u *uploadWriter) Write(p []byte) (int, error) {
	return u.compressor.Write(p)
}

func (u *uploadWriter) Close() error {
	err1 := u.compressor.Close()
	err2 := u.pipe.Close()
	if err := <-u.errCh; err != nil {
		return err
	}
	if err1 != nil {
		return err1
	}
	return err2
}

func toBool(val interface{}) bool {
	switch v := val.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case string:
		return v == "1" || v == "true" || v == "on"
	default:
		return false
	}
}
