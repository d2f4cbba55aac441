// Package sink streams backup artifacts to their offsite destination:
// local disk, S3, Azure Blob Storage, or stdout/null for dev use.
package sink

import (
	"context"
	"fmt"
	"io"
)

// Sink opens one named artifact for writing at the destination.
type Sink interface {
	Open(ctx context.Context, name string) (io.WriteCloser, error)
}

// Factory builds a sink from its configured options.
type Factory func(opts map[string]interface{}) (Sink, error)

var registry = make(map[string]Factory)

func Register(name string, f Factory) {
	registry[name] = f
}

// ForName builds the named sink. Unknown names are configuration
// errors surfaced to the caller.
func ForName(name string, opts map[string]interface{}) (Sink, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("sink not found: %s", name)
	}
	if opts == nil {
		opts = map[string]interface{}{}
	}
	return f(opts)
}

// Registered lists the available sink names.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	return names
}
