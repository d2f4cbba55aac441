// Package upload ships the on-disk dump artifacts of a completed
// backup to a configured sink.
package upload

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/shardsnap/shardsnap/internal/sink"
)

// Uploader streams every file under a backup directory to its sink,
// keyed by the path relative to the directory, under an optional
// prefix.
type Uploader struct {
	Sink   sink.Sink
	Prefix string
	Logger *log.Logger
}

// Stats summarize one upload pass.
type Stats struct {
	Files int
	Bytes int64
}

// Run walks baseDir and uploads each regular file. The walk aborts on
// the first failed transfer so a partial upload is never mistaken for a
// complete one.
func (u *Uploader) Run(ctx context.Context, baseDir string) (Stats, error) {
	var stats Stats
	err := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(baseDir, path)
		if err != nil {
			return err
		}
		n, err := u.uploadFile(ctx, path, filepath.ToSlash(filepath.Join(u.Prefix, rel)))
		if err != nil {
			return fmt.Errorf("upload %s: %w", rel, err)
		}
		stats.Files++
		stats.Bytes += n
		return nil
	})
	if err != nil {
		return stats, err
	}
	if u.Logger != nil {
		u.Logger.Printf("Uploaded %d files (%d bytes) from %s", stats.Files, stats.Bytes, baseDir)
	}
	return stats, nil
}

func (u *Uploader) uploadFile(ctx context.Context, path, key string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w, err := u.Sink.Open(ctx, key)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, f)
	if err != nil {
		w.Close()
		return n, err
	}
	return n, w.Close()
}
