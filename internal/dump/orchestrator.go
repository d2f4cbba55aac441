package dump

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/shardsnap/shardsnap/internal/timer"
	"github.com/shardsnap/shardsnap/internal/topo"
)

const (
	timerName           = "mongodump"
	defaultPollInterval = 500 * time.Millisecond
)

// Config wires an Orchestrator. Replsets maps shard identifiers to
// their Replication collaborators; Sharding and Oplog are optional.
type Config struct {
	Replsets     map[string]topo.Replication
	Sharding     topo.Sharding
	Oplog        topo.OplogPositioner
	Timer        *timer.Timer
	Creds        topo.Credentials
	Binary       string
	BackupDir    string
	Compression  string // "gzip" or "none"
	Threads      int    // explicit per-dump override, 0 = computed
	PollInterval time.Duration
	Verbose      bool
	Logger       *log.Logger
}

// JobHandle tracks one running dump for the duration of a phase.
type JobHandle struct {
	Target Target
	State  *State
	worker *Worker
}

func (h *JobHandle) IsAlive() bool { return h.worker.IsAlive() }
func (h *JobHandle) ExitCode() int { return h.worker.ExitCode() }
func (h *JobHandle) Terminate()    { h.worker.Terminate() }

// Orchestrator coordinates a point-in-time-consistent dump of every
// shard's secondary, plus a second pass for a legacy standalone config
// server. One run per instance: dispatch all shard jobs, wait for every
// one of them, then repeat for the config server if present.
type Orchestrator struct {
	cfg     Config
	planner *Planner
	gzip    bool
	logger  *log.Logger

	handles   []*JobHandle
	summary   Summary
	completed bool
}

// NewOrchestrator validates collaborator wiring and probes the dump
// binary. Both failure modes are fatal before any job starts.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if len(cfg.Replsets) == 0 {
		return nil, &ConfigurationError{Msg: "replsets is required: one Replication collaborator per shard"}
	}
	if cfg.Binary == "" {
		return nil, &ConfigurationError{Msg: "mongodump binary path is required"}
	}
	if cfg.BackupDir == "" {
		return nil, &ConfigurationError{Msg: "backup directory is required"}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	planner, err := NewPlanner(cfg.Binary, logger)
	if err != nil {
		return nil, err
	}
	return newOrchestrator(cfg, planner, logger), nil
}

// newOrchestrator finishes construction with an already-probed planner.
func newOrchestrator(cfg Config, planner *Planner, logger *log.Logger) *Orchestrator {
	if cfg.Timer == nil {
		cfg.Timer = timer.New()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Threads > 0 {
		planner.SetOverride(cfg.Threads)
	}
	gzip := false
	if cfg.Compression == "gzip" {
		if planner.CanGzip() {
			gzip = true
		} else {
			logger.Printf("WARNING: mongodump gzip compression requested on binary that does not support gzip")
		}
	}
	return &Orchestrator{
		cfg:     cfg,
		planner: planner,
		gzip:    gzip,
		logger:  logger,
		summary: make(Summary),
	}
}

// Version is the probed dump binary version.
func (o *Orchestrator) Version() Version { return o.planner.Version }

// Gzip reports whether dumps will be gzip-compressed.
func (o *Orchestrator) Gzip() bool { return o.gzip }

// WorkersPerDump is the concurrency plan applied to every job this run.
func (o *Orchestrator) WorkersPerDump() int {
	return o.planner.WorkersPerDump(len(o.cfg.Replsets))
}

// Run executes the full backup: shard phase, then config server phase
// if one exists. It returns the merged summary, or no summary at all
// when cancelled.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	o.cfg.Timer.Start(timerName)

	handles := o.dispatchShards(ctx)
	if len(handles) == 0 {
		return nil, &OperationError{Msg: "no backup jobs scheduled: no shard has a backup-eligible secondary"}
	}

	o.logger.Printf("Starting backups using mongodump %s (options: gzip=%v, workers_per_dump=%d)",
		o.planner.Version, o.gzip, o.WorkersPerDump())
	if err := o.runPhase(ctx, handles); err != nil {
		return nil, err
	}

	if o.cfg.Sharding != nil {
		if err := o.runConfigServerPhase(ctx); err != nil {
			return nil, err
		}
	}

	o.completed = true
	return o.summary, nil
}

// Summary returns the merged run summary. It is stable once Run has
// returned and re-triggers nothing.
func (o *Orchestrator) Summary() Summary {
	return o.summary
}

// Completed reports whether Run finished cleanly.
func (o *Orchestrator) Completed() bool { return o.completed }

// dispatchShards builds one state, worker and handle per shard that has
// a backup-eligible secondary. Shards without one contribute no job.
func (o *Orchestrator) dispatchShards(ctx context.Context) []*JobHandle {
	// Deterministic dispatch order makes logs and tests stable.
	shards := make([]string, 0, len(o.cfg.Replsets))
	for shard := range o.cfg.Replsets {
		shards = append(shards, shard)
	}
	sort.Strings(shards)

	workers := o.WorkersPerDump()
	var handles []*JobHandle
	for _, shard := range shards {
		secondary, err := o.cfg.Replsets[shard].FindSecondary(ctx)
		if err != nil || secondary == nil {
			o.logger.Printf("WARNING: shard %s has no backup-eligible secondary, skipping: %v", shard, err)
			continue
		}
		target := Target{ID: shard, Host: secondary.Host, Port: secondary.Port, Role: RoleReplset}
		handles = append(handles, o.newHandle(target, workers))
	}
	return handles
}

// runConfigServerPhase dumps a legacy standalone config server with the
// same start/wait/aggregate path, scoped to a single job. Absence of a
// standalone config server skips the phase with no error.
func (o *Orchestrator) runConfigServerPhase(ctx context.Context) error {
	cs, err := o.cfg.Sharding.GetConfigServer(ctx)
	if err != nil {
		return &OperationError{Msg: fmt.Sprintf("cannot determine config server topology: %v", err)}
	}
	if cs == nil {
		return nil
	}
	o.logger.Printf("Using non-replset backup method for config server mongodump")
	target := Target{ID: ConfigServerID, Host: cs.Host, Port: ConfigServerPort, Role: RoleConfigsvr}
	return o.runPhase(ctx, []*JobHandle{o.newHandle(target, o.WorkersPerDump())})
}

func (o *Orchestrator) newHandle(target Target, workers int) *JobHandle {
	state := NewState(target.Host, target.Port)
	worker := &Worker{
		Target:  target,
		State:   state,
		Creds:   o.cfg.Creds,
		Binary:  o.cfg.Binary,
		OutDir:  o.cfg.BackupDir,
		Workers: workers,
		Gzip:    o.gzip,
		Verbose: o.cfg.Verbose,
		Oplog:   o.cfg.Oplog,
		Logger:  o.logger,
	}
	return &JobHandle{Target: target, State: state, worker: worker}
}

// runPhase starts every handle, then polls until all are terminal,
// checking for cancellation each tick. Summaries are read only after
// every job in the phase has confirmed terminal status.
func (o *Orchestrator) runPhase(ctx context.Context, handles []*JobHandle) error {
	o.handles = handles
	for _, h := range handles {
		if err := h.worker.Start(); err != nil {
			o.logger.Printf("WARNING: %v", err)
		}
	}

	succeeded, err := o.wait(ctx, handles)
	if err != nil {
		return err
	}

	for _, h := range handles {
		o.summary[h.Target.ID] = h.State.Snapshot()
	}
	o.handles = nil

	if succeeded != len(handles) {
		return &OperationError{Msg: "not all mongodump jobs completed successfully"}
	}
	o.logger.Printf("All mongodump backups completed successfully")
	// The config server phase stops a timer the shard phase already
	// stopped; the error is ignored.
	_, _ = o.cfg.Timer.Stop(timerName)
	return nil
}

// wait polls in bounded intervals until every handle is terminal. A
// cancelled context tears down all in-flight jobs and aborts the run.
func (o *Orchestrator) wait(ctx context.Context, handles []*JobHandle) (int, error) {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	succeeded := 0
	remaining := make([]*JobHandle, len(handles))
	copy(remaining, handles)
	for len(remaining) > 0 {
		select {
		case <-ctx.Done():
			o.shutdown()
			return succeeded, fmt.Errorf("backup aborted: %w", ctx.Err())
		case <-ticker.C:
			alive := remaining[:0]
			for _, h := range remaining {
				if h.IsAlive() {
					alive = append(alive, h)
					continue
				}
				if h.ExitCode() == 0 {
					succeeded++
				}
			}
			remaining = alive
		}
	}
	return succeeded, nil
}

// shutdown force-terminates every tracked job. Cleanup must not itself
// fail, so every error in here is swallowed.
func (o *Orchestrator) shutdown() {
	o.logger.Printf("Stopping all mongodump jobs")
	for _, h := range o.handles {
		h.Terminate()
	}
	_, _ = o.cfg.Timer.Stop(timerName)
	o.logger.Printf("Stopped all mongodump jobs")
}
