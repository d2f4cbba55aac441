package dump

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/shardsnap/shardsnap/internal/timer"
	"github.com/shardsnap/shardsnap/internal/topo"
	"github.com/stretchr/testify/require"
)

type stubReplset struct {
	member *topo.Member
	err    error
}

func (s stubReplset) FindSecondary(ctx context.Context) (*topo.Member, error) {
	return s.member, s.err
}

type stubSharding struct {
	cs  *topo.ConfigServer
	err error
}

func (s stubSharding) GetConfigServer(ctx context.Context) (*topo.ConfigServer, error) {
	return s.cs, s.err
}

func testOrchestrator(t *testing.T, script string, replsets map[string]topo.Replication) *Orchestrator {
	t.Helper()
	cfg := Config{
		Replsets:     replsets,
		Timer:        timer.New(),
		Binary:       writeStub(t, script),
		BackupDir:    t.TempDir(),
		PollInterval: 20 * time.Millisecond,
		Logger:       testLogger(),
	}
	planner := &Planner{Binary: cfg.Binary, Version: Version{3, 4, 1}, CPUCount: 4, Logger: cfg.Logger}
	return newOrchestrator(cfg, planner, cfg.Logger)
}

func twoShards() map[string]topo.Replication {
	return map[string]topo.Replication{
		"rs0": stubReplset{member: &topo.Member{Replset: "rs0", Host: "db0", Port: 27017}},
		"rs1": stubReplset{member: &topo.Member{Replset: "rs1", Host: "db1", Port: 27017}},
	}
}

func TestRunAllShardsSucceed(t *testing.T) {
	o := testOrchestrator(t, `exit 0`, twoShards())
	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary, 2)
	require.True(t, o.Completed())

	for _, id := range []string{"rs0", "rs1"} {
		snap, ok := summary[id]
		require.True(t, ok, "summary missing %s", id)
		require.True(t, snap.Completed)
		require.Empty(t, snap.Error)
	}

	// The phase duration was recorded.
	_, ok := o.cfg.Timer.Duration(timerName)
	require.True(t, ok)

	// Reading the summary again is stable and re-runs nothing.
	require.Equal(t, summary, o.Summary())
	require.Equal(t, summary, o.Summary())
}

func TestRunOneShardFails(t *testing.T) {
	// The stub fails only for the db1 target, so rs1's job exits
	// nonzero while rs0's succeeds.
	script := `if [ "$2" = "db1" ]; then exit 1; fi; exit 0`
	o := testOrchestrator(t, script, twoShards())

	_, err := o.Run(context.Background())
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	require.False(t, o.Completed())

	// Every sibling was still waited on and captured.
	summary := o.Summary()
	require.Len(t, summary, 2)
	require.True(t, summary["rs0"].Completed)
	require.False(t, summary["rs1"].Completed)
	require.NotEmpty(t, summary["rs1"].Error)
}

func TestRunNoEligibleSecondaries(t *testing.T) {
	replsets := map[string]topo.Replication{
		"rs0": stubReplset{err: topo.ErrNoSecondary},
		"rs1": stubReplset{err: topo.ErrNoSecondary},
	}
	o := testOrchestrator(t, `exit 0`, replsets)

	_, err := o.Run(context.Background())
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	require.Empty(t, o.Summary(), "no job may start when nothing is schedulable")
}

func TestRunPartialDispatch(t *testing.T) {
	// One shard without an eligible secondary is skipped, not fatal.
	replsets := twoShards()
	replsets["rs2"] = stubReplset{err: topo.ErrNoSecondary}
	o := testOrchestrator(t, `exit 0`, replsets)

	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary, 2)
	_, ok := summary["rs2"]
	require.False(t, ok)
}

func TestRunConfigServerPhase(t *testing.T) {
	o := testOrchestrator(t, `exit 0`, twoShards())
	o.cfg.Sharding = stubSharding{cs: &topo.ConfigServer{Host: "cfg1"}}

	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary, 3)

	snap, ok := summary[ConfigServerID]
	require.True(t, ok)
	require.True(t, snap.Completed)
	require.Equal(t, "cfg1", snap.Host)
	require.Equal(t, ConfigServerPort, snap.Port)
}

func TestRunConfigServerAbsent(t *testing.T) {
	// Replicated config servers need no separate pass.
	o := testOrchestrator(t, `exit 0`, twoShards())
	o.cfg.Sharding = stubSharding{}

	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary, 2)
}

func TestRunCancellation(t *testing.T) {
	pidDir := t.TempDir()
	script := fmt.Sprintf(`echo $$ > %s/pid_$2; sleep 30`, pidDir)
	o := testOrchestrator(t, script, twoShards())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	summary, err := o.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Nil(t, summary, "a cancelled run produces no summary")
	require.False(t, o.Completed())

	// Every tracked dump process was force-terminated.
	pids, err := filepath.Glob(filepath.Join(pidDir, "pid_*"))
	require.NoError(t, err)
	require.Len(t, pids, 2)
	for _, f := range pids {
		data, err := os.ReadFile(f)
		require.NoError(t, err)
		var pid int
		_, err = fmt.Sscanf(string(data), "%d", &pid)
		require.NoError(t, err)
		waitFor(t, 5*time.Second, func() bool {
			return syscall.Kill(pid, 0) != nil
		})
	}
}

func TestNewOrchestratorValidation(t *testing.T) {
	var cfgErr *ConfigurationError

	_, err := NewOrchestrator(Config{})
	require.ErrorAs(t, err, &cfgErr)

	_, err = NewOrchestrator(Config{
		Replsets:  twoShards(),
		Binary:    "/nonexistent/mongodump",
		BackupDir: t.TempDir(),
	})
	require.ErrorAs(t, err, &cfgErr)
}

func TestGzipDowngradeWarning(t *testing.T) {
	cfg := Config{
		Replsets:    twoShards(),
		Timer:       timer.New(),
		Binary:      "mongodump",
		BackupDir:   "/tmp",
		Compression: "gzip",
		Logger:      testLogger(),
	}
	// Binary below the gzip threshold: requested compression degrades
	// to uncompressed instead of failing the run.
	planner := &Planner{Version: Version{2, 6, 12}, CPUCount: 4, Logger: cfg.Logger}
	o := newOrchestrator(cfg, planner, cfg.Logger)
	require.False(t, o.Gzip())

	planner = &Planner{Version: Version{3, 4, 1}, CPUCount: 4, Logger: cfg.Logger}
	o = newOrchestrator(cfg, planner, cfg.Logger)
	require.True(t, o.Gzip())
}
