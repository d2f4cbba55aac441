package dump

import (
	"fmt"
	"log"
	"os/exec"
	"runtime"
	"strings"
)

// minFeatureVersion gates both per-dump threading and gzip output.
var minFeatureVersion = Version{3, 2, 0}

// maxWorkersPerDump caps per-dump parallelism regardless of host size.
const maxWorkersPerDump = 16

// Planner decides worker parallelism per dump job and which optional
// binary features can be used, based on one up-front probe of the dump
// binary. The plan is computed once and cached; only an explicit
// override replaces it.
type Planner struct {
	Binary   string
	Version  Version
	CPUCount int
	Logger   *log.Logger

	override int
	cached   int
}

// NewPlanner probes the dump binary's version. A binary that cannot be
// found or executed is a ConfigurationError.
func NewPlanner(binary string, logger *log.Logger) (*Planner, error) {
	out, err := exec.Command(binary, "--version").Output()
	if err != nil {
		return nil, &ConfigurationError{
			Msg: fmt.Sprintf("cannot find or execute the mongodump binary %s", binary),
			Err: err,
		}
	}
	v, err := parseVersionOutput(string(out))
	if err != nil {
		return nil, &ConfigurationError{
			Msg: fmt.Sprintf("cannot parse %s --version output", binary),
			Err: err,
		}
	}
	return &Planner{
		Binary:   binary,
		Version:  v,
		CPUCount: runtime.NumCPU(),
		Logger:   logger,
	}, nil
}

// parseVersionOutput extracts the version from `mongodump --version`
// output, whose first line looks like "mongodump version: r4.2.0".
func parseVersionOutput(out string) (Version, error) {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "version") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		return ParseVersion(fields[len(fields)-1])
	}
	return nil, fmt.Errorf("no version line in output %q", strings.TrimSpace(out))
}

// SetOverride fixes the worker count per dump, bypassing the computed
// plan entirely.
func (p *Planner) SetOverride(workers int) {
	if workers > 0 {
		p.override = workers
	}
}

// WorkersPerDump returns the worker-thread count each dump job should
// use when shardCount jobs run concurrently. The host CPU budget is
// spread evenly across jobs rather than over-subscribed.
func (p *Planner) WorkersPerDump(shardCount int) int {
	if p.override > 0 {
		return p.override
	}
	if p.cached > 0 {
		return p.cached
	}
	workers := 1
	if p.Version.AtLeast(minFeatureVersion) {
		if shardCount > 0 && p.CPUCount > shardCount {
			workers = p.CPUCount / shardCount
			if workers > maxWorkersPerDump {
				workers = maxWorkersPerDump
			}
		}
	} else if p.Logger != nil {
		p.Logger.Printf("WARNING: threading unsupported by mongodump version %s, use mongodump %s or greater to enable per-dump threading",
			p.Version, minFeatureVersion)
	}
	p.cached = workers
	return workers
}

// CanGzip reports whether the probed binary supports gzip output.
func (p *Planner) CanGzip() bool {
	return p.Version.AtLeast(minFeatureVersion)
}
