package dump

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/shardsnap/shardsnap/internal/topo"
)

// Target roles.
const (
	RoleReplset   = "replset"
	RoleConfigsvr = "configsvr"
)

// ConfigServerID keys the standalone config server in states and
// summaries, and ConfigServerPort is its well-known port.
const (
	ConfigServerID   = "configsvr"
	ConfigServerPort = 27019
)

// Target identifies one thing to back up. Immutable once computed for a
// run.
type Target struct {
	ID   string // shard replset name, or ConfigServerID
	Host string
	Port int
	Role string
}

func (t Target) Address() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// Worker runs one mongodump of one target as a separate OS process in
// its own process group, so a crash or hang stays contained and a
// terminal SIGINT reaches only the orchestrator. It is the single
// writer of its State while running.
type Worker struct {
	Target  Target
	State   *State
	Creds   topo.Credentials
	Binary  string
	OutDir  string
	Workers int
	Gzip    bool
	Verbose bool
	Oplog   topo.OplogPositioner // optional
	Logger  *log.Logger

	cmd      *exec.Cmd
	done     chan struct{}
	exitCode int
}

// Start launches the dump process and returns immediately. The oplog
// position is recorded just before launch and again after a clean exit,
// bracketing the dump for the downstream consistency stage.
func (w *Worker) Start() error {
	if w.done != nil {
		return fmt.Errorf("dump job for %s already started", w.Target.ID)
	}
	w.done = make(chan struct{})
	w.State.SetLocation(w.Target.Host, w.Target.Port)
	w.recordOplogBound()

	cmd := exec.Command(w.Binary, w.args()...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return w.failBeforeStart(fmt.Errorf("stdout pipe for %s: %w", w.Target.ID, err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return w.failBeforeStart(fmt.Errorf("stderr pipe for %s: %w", w.Target.ID, err))
	}
	if err := cmd.Start(); err != nil {
		return w.failBeforeStart(fmt.Errorf("start mongodump for %s: %w", w.Target.ID, err))
	}
	w.cmd = cmd

	var pipes sync.WaitGroup
	pipes.Add(2)
	go w.stream(stdout, &pipes)
	go w.stream(stderr, &pipes)

	go func() {
		// Drain output before reporting terminal so the orchestrator
		// never reads a summary ahead of the job's last log lines.
		pipes.Wait()
		err := cmd.Wait()
		w.exitCode = cmd.ProcessState.ExitCode()
		if err == nil && w.exitCode == 0 {
			w.recordOplogBound()
			w.State.setCompleted("")
		} else {
			w.State.setCompleted(fmt.Sprintf("mongodump for %s exited with code %d", w.Target.ID, w.exitCode))
		}
		close(w.done)
	}()
	return nil
}

func (w *Worker) failBeforeStart(err error) error {
	w.exitCode = -1
	w.State.setCompleted(err.Error())
	close(w.done)
	return err
}

// args builds the mongodump invocation. Each target dumps into its own
// subdirectory so no two jobs ever share an output path.
func (w *Worker) args() []string {
	args := []string{
		"--host", w.Target.Host,
		"--port", strconv.Itoa(w.Target.Port),
		"--out", w.OutputDir(),
	}
	if w.Creds.Set() {
		authdb := w.Creds.AuthDB
		if authdb == "" {
			authdb = "admin"
		}
		args = append(args,
			"-u", w.Creds.User,
			"-p", w.Creds.Password,
			"--authenticationDatabase", authdb,
		)
	}
	if w.Target.Role != RoleConfigsvr {
		args = append(args, "--oplog")
	}
	if w.Workers > 1 {
		args = append(args, "--numParallelCollections", strconv.Itoa(w.Workers))
	}
	if w.Gzip {
		args = append(args, "--gzip")
	}
	if w.Verbose {
		args = append(args, "-v")
	}
	return args
}

// OutputDir is this target's slice of the backup directory.
func (w *Worker) OutputDir() string {
	return filepath.Join(w.OutDir, w.Target.ID)
}

func (w *Worker) stream(r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if w.Logger != nil {
			w.Logger.Printf("[%s] %s", w.Target.ID, scanner.Text())
		}
	}
}

func (w *Worker) recordOplogBound() {
	if w.Oplog == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	ts, err := w.Oplog.LatestOplogPosition(ctx, w.Target.Host, w.Target.Port)
	if err != nil {
		if w.Logger != nil {
			w.Logger.Printf("[%s] could not read oplog position: %v", w.Target.ID, err)
		}
		return
	}
	w.State.RecordOplogBound(ts)
}

// IsAlive reports whether the dump process has not yet reached a
// terminal status with its output drained.
func (w *Worker) IsAlive() bool {
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// ExitCode is only meaningful once IsAlive returns false.
func (w *Worker) ExitCode() int {
	return w.exitCode
}

// Terminate force-kills the dump's process group. Errors are swallowed:
// this runs during cancellation cleanup, which must never fail.
func (w *Worker) Terminate() {
	if w.cmd == nil || w.cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-w.cmd.Process.Pid, syscall.SIGKILL)
}
