package dump

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// writeStub writes a shell script that stands in for the mongodump
// binary.
func writeStub(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mongodump")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

type stubOplog struct {
	positions []bson.Timestamp
	calls     int
}

func (s *stubOplog) LatestOplogPosition(ctx context.Context, host string, port int) (bson.Timestamp, error) {
	ts := s.positions[s.calls%len(s.positions)]
	s.calls++
	return ts, nil
}

func newTestWorker(t *testing.T, script string) *Worker {
	target := Target{ID: "rs0", Host: "db1", Port: 27017, Role: RoleReplset}
	return &Worker{
		Target: target,
		State:  NewState(target.Host, target.Port),
		Binary: writeStub(t, script),
		OutDir: t.TempDir(),
		Logger: testLogger(),
	}
}

func TestWorkerSuccess(t *testing.T) {
	w := newTestWorker(t, `echo "dump done"; exit 0`)
	w.Oplog = &stubOplog{positions: []bson.Timestamp{{T: 100, I: 1}, {T: 200, I: 1}}}

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool { return !w.IsAlive() })

	if w.ExitCode() != 0 {
		t.Errorf("exit code = %d, want 0", w.ExitCode())
	}
	snap := w.State.Snapshot()
	if !snap.Completed {
		t.Errorf("state not completed: %+v", snap)
	}
	if snap.OplogFirst == nil || snap.OplogFirst.T != 100 {
		t.Errorf("oplog first = %+v, want T=100", snap.OplogFirst)
	}
	if snap.OplogLast == nil || snap.OplogLast.T != 200 {
		t.Errorf("oplog last = %+v, want T=200", snap.OplogLast)
	}
}

func TestWorkerFailure(t *testing.T) {
	w := newTestWorker(t, `exit 3`)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool { return !w.IsAlive() })

	if w.ExitCode() != 3 {
		t.Errorf("exit code = %d, want 3", w.ExitCode())
	}
	snap := w.State.Snapshot()
	if snap.Completed || snap.Error == "" {
		t.Errorf("failed dump must record an error, got %+v", snap)
	}
}

func TestWorkerTerminate(t *testing.T) {
	w := newTestWorker(t, `sleep 30`)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Give the shell a moment to exec.
	time.Sleep(50 * time.Millisecond)
	w.Terminate()
	waitFor(t, 5*time.Second, func() bool { return !w.IsAlive() })

	if w.ExitCode() == 0 {
		t.Error("terminated dump must not report success")
	}
	if snap := w.State.Snapshot(); snap.Completed {
		t.Error("terminated dump must not be marked completed")
	}
}

func TestWorkerOutputStreamed(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWorker(t, `echo "writing collection users"; echo "oops" >&2; exit 0`)
	w.Logger = log.New(&buf, "", 0)

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool { return !w.IsAlive() })

	out := buf.String()
	if !strings.Contains(out, "[rs0] writing collection users") {
		t.Errorf("stdout not streamed with target prefix: %q", out)
	}
	if !strings.Contains(out, "[rs0] oops") {
		t.Errorf("stderr not streamed with target prefix: %q", out)
	}
}

func TestWorkerArgs(t *testing.T) {
	w := &Worker{
		Target:  Target{ID: "rs0", Host: "db1", Port: 27018, Role: RoleReplset},
		Binary:  "/usr/bin/mongodump",
		OutDir:  "/backups/run1",
		Workers: 4,
		Gzip:    true,
	}
	args := strings.Join(w.args(), " ")
	for _, want := range []string{
		"--host db1",
		"--port 27018",
		"--out /backups/run1/rs0",
		"--oplog",
		"--numParallelCollections 4",
		"--gzip",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("args missing %q: %s", want, args)
		}
	}
	if strings.Contains(args, "-u") {
		t.Errorf("no credentials given, args must not include auth flags: %s", args)
	}

	// A standalone config server is not a replica set: no --oplog.
	w.Target.Role = RoleConfigsvr
	if strings.Contains(strings.Join(w.args(), " "), "--oplog") {
		t.Error("configsvr dump must not pass --oplog")
	}
}

func TestWorkerProcessGroupIsolation(t *testing.T) {
	w := newTestWorker(t, `sleep 30`)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Terminate()
	time.Sleep(50 * time.Millisecond)

	pid := w.cmd.Process.Pid
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		t.Fatalf("Getpgid: %v", err)
	}
	if pgid != pid {
		t.Errorf("dump process must lead its own process group: pid=%d pgid=%d", pid, pgid)
	}
}
