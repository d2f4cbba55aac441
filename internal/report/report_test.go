package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/shardsnap/shardsnap/internal/dump"
)

func testManifest() *Manifest {
	first := bson.Timestamp{T: 100, I: 1}
	last := bson.Timestamp{T: 230, I: 4}
	return &Manifest{
		RunID:          "2f0c9c1e-8a3f-4f6e-9a3e-0b8f8d1a2b3c",
		StartedAt:      time.Date(2026, 8, 30, 1, 0, 0, 0, time.UTC),
		FinishedAt:     time.Date(2026, 8, 30, 1, 14, 0, 0, time.UTC),
		ToolVersion:    "4.2.0",
		WorkersPerDump: 4,
		Gzip:           true,
		Targets: dump.Summary{
			"rs0": {Host: "db0", Port: 27017, OplogFirst: &first, OplogLast: &last, Completed: true},
		},
		Timings: map[string]time.Duration{"mongodump": 14 * time.Minute},
	}
}

func TestWriteReadJSON(t *testing.T) {
	dir := t.TempDir()
	path, err := Write(dir, testManifest(), "json", "none")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "backup_manifest.json"), path)

	m, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, "4.2.0", m.ToolVersion)
	require.Len(t, m.Targets, 1)
	require.Equal(t, uint32(100), m.Targets["rs0"].OplogFirst.T)
	require.Equal(t, uint32(230), m.Targets["rs0"].OplogLast.T)
}

func TestWriteReadCBORCompressed(t *testing.T) {
	dir := t.TempDir()
	path, err := Write(dir, testManifest(), "cbor", "gzip")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "backup_manifest.cbor.gz"), path)

	m, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, 4, m.WorkersPerDump)
	require.True(t, m.Targets["rs0"].Completed)
}

func TestWriteUnsupportedFormat(t *testing.T) {
	_, err := Write(t.TempDir(), testManifest(), "xml", "none")
	require.Error(t, err)
}
