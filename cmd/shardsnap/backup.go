package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shardsnap/shardsnap/cmd/shardsnap/config"
	"github.com/shardsnap/shardsnap/internal/dump"
	"github.com/shardsnap/shardsnap/internal/report"
	"github.com/shardsnap/shardsnap/internal/sink"
	"github.com/shardsnap/shardsnap/internal/timer"
	"github.com/shardsnap/shardsnap/internal/topo"
	"github.com/shardsnap/shardsnap/internal/upload"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Run a point-in-time-consistent backup of every shard",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		return runBackup(cfg)
	},
}

func runBackup(cfg *config.BackupConfig) error {
	ctx := cmdContext()
	logger := log.New(os.Stdout, "[backup] ", log.LstdFlags)

	creds := topo.Credentials{User: cfg.User, Password: cfg.Password, AuthDB: cfg.AuthDB}

	replsets := make(map[string]topo.Replication, len(cfg.Shards))
	for _, shard := range cfg.Shards {
		rs, err := topo.NewReplset(shard.Name, shard.URI, logger)
		if err != nil {
			return fmt.Errorf("shard %s: %w", shard.Name, err)
		}
		defer rs.Close(context.Background())
		replsets[shard.Name] = rs
	}

	var sharding topo.Sharding
	if cfg.Mongos.URI != "" {
		mongos, err := topo.NewMongos(cfg.Mongos.URI, logger)
		if err != nil {
			return fmt.Errorf("mongos: %w", err)
		}
		defer mongos.Close(context.Background())
		sharding = mongos
	}

	runID := uuid.NewString()
	started := time.Now().UTC()
	runDir := filepath.Join(cfg.BackupDir, started.Format("20060102_1504"))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	tm := timer.New()
	orch, err := dump.NewOrchestrator(dump.Config{
		Replsets:     replsets,
		Sharding:     sharding,
		Oplog:        &topo.OplogReader{Creds: creds},
		Timer:        tm,
		Creds:        creds,
		Binary:       cfg.Mongodump.Binary,
		BackupDir:    runDir,
		Compression:  cfg.Mongodump.Compression,
		Threads:      cfg.Mongodump.Threads,
		PollInterval: cfg.PollInterval,
		Verbose:      cfg.Verbose,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	logger.Printf("Starting backup run %s into %s", runID, runDir)
	summary, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	manifest := &report.Manifest{
		RunID:          runID,
		StartedAt:      started,
		FinishedAt:     time.Now().UTC(),
		ToolVersion:    orch.Version().String(),
		WorkersPerDump: orch.WorkersPerDump(),
		Gzip:           orch.Gzip(),
		Targets:        summary,
		Timings:        tm.All(),
	}
	path, err := report.Write(runDir, manifest, cfg.Report.Format, cfg.Report.Compression)
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	logger.Printf("Wrote backup manifest %s", path)

	if cfg.Upload.Sink != "" {
		s, err := sink.ForName(cfg.Upload.Sink, cfg.Upload.Options)
		if err != nil {
			return fmt.Errorf("upload sink: %w", err)
		}
		up := &upload.Uploader{Sink: s, Prefix: filepath.Base(runDir), Logger: logger}
		if _, err := up.Run(ctx, runDir); err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
	}

	logger.Printf("Backup run %s completed", runID)
	return nil
}
