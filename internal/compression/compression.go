// Package compression wraps writers and readers with the compression
// schemes supported for backup manifests and uploaded artifacts.
package compression

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
)

// NewWriter returns an io.WriteCloser that wraps w with the requested
// compression. Supported: "gzip", "bzip2", or ""/"none".
func NewWriter(w io.Writer, compression string) (io.WriteCloser, error) {
	switch compression {
	case "gzip":
		return gzip.NewWriter(w), nil
	case "bzip2":
		return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.BestCompression})
	case "", "none":
		return nopWriteCloser{w}, nil
	default:
		return nil, fmt.Errorf("unsupported compression: %s", compression)
	}
}

// NewReader returns a reader that undoes the named compression.
func NewReader(r io.Reader, compression string) (io.Reader, error) {
	switch compression {
	case "gzip":
		return gzip.NewReader(r)
	case "bzip2":
		return bzip2.NewReader(r, nil)
	case "", "none":
		return r, nil
	default:
		return nil, fmt.Errorf("unsupported compression: %s", compression)
	}
}

// Ext returns the filename suffix for the named compression.
func Ext(compression string) string {
	switch compression {
	case "gzip":
		return ".gz"
	case "bzip2":
		return ".bz2"
	default:
		return ""
	}
}

type nopWriteCloser struct{ io.Writer }

func (n nopWriteCloser) Write(p []byte) (int, error) { return n.Writer.Write(p) }
func (n nopWriteCloser) Close() error                { return nil }
