// Package report writes the backup manifest: run metadata plus the
// final per-target dump states, for the downstream consistency stage.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/shardsnap/shardsnap/internal/compression"
	"github.com/shardsnap/shardsnap/internal/dump"
)

// Manifest describes one completed backup run.
type Manifest struct {
	RunID          string                   `json:"run_id" cbor:"run_id"`
	StartedAt      time.Time                `json:"started_at" cbor:"started_at"`
	FinishedAt     time.Time                `json:"finished_at" cbor:"finished_at"`
	ToolVersion    string                   `json:"tool_version" cbor:"tool_version"`
	WorkersPerDump int                      `json:"workers_per_dump" cbor:"workers_per_dump"`
	Gzip           bool                     `json:"gzip" cbor:"gzip"`
	Targets        dump.Summary             `json:"targets" cbor:"targets"`
	Timings        map[string]time.Duration `json:"timings,omitempty" cbor:"timings,omitempty"`
}

// Write encodes the manifest into dir as backup_manifest.<format>, with
// optional compression. Supported formats: "json" (default), "cbor".
func Write(dir string, m *Manifest, format, compress string) (string, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case "", "json":
		format = "json"
		data, err = json.MarshalIndent(m, "", "  ")
	case "cbor":
		data, err = cbor.Marshal(m)
	default:
		return "", fmt.Errorf("unsupported manifest format: %s", format)
	}
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}

	path := filepath.Join(dir, "backup_manifest."+format+compression.Ext(compress))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create manifest: %w", err)
	}
	w, err := compression.NewWriter(f, compress)
	if err != nil {
		f.Close()
		return "", err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		f.Close()
		return "", fmt.Errorf("write manifest: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// Read decodes a manifest previously written by Write.
func Read(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	compress := ""
	name := path
	switch filepath.Ext(name) {
	case ".gz":
		compress = "gzip"
		name = name[:len(name)-3]
	case ".bz2":
		compress = "bzip2"
		name = name[:len(name)-4]
	}
	r, err := compression.NewReader(f, compress)
	if err != nil {
		return nil, err
	}

	var m Manifest
	switch filepath.Ext(name) {
	case ".json":
		err = json.NewDecoder(r).Decode(&m)
	case ".cbor":
		err = cbor.NewDecoder(r).Decode(&m)
	default:
		return nil, fmt.Errorf("unrecognized manifest file: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
