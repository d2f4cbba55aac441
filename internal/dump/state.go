package dump

import (
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// State is the per-target dump record: where the dump ran and the oplog
// positions bracketing it. It has exactly one writer, the owning job;
// the orchestrator only snapshots it after the job is confirmed
// terminal.
type State struct {
	mu sync.Mutex

	host       string
	port       int
	oplogFirst *bson.Timestamp
	oplogLast  *bson.Timestamp
	completed  bool
	errMsg     string
}

// StateSnapshot is a point-in-time copy of a State, safe to hold after
// the owning job is gone.
type StateSnapshot struct {
	Host       string          `json:"host"`
	Port       int             `json:"port"`
	OplogFirst *bson.Timestamp `json:"oplog_first,omitempty"`
	OplogLast  *bson.Timestamp `json:"oplog_last,omitempty"`
	Completed  bool            `json:"completed"`
	Error      string          `json:"error,omitempty"`
}

func NewState(host string, port int) *State {
	return &State{host: host, port: port}
}

// SetLocation updates the target address.
func (s *State) SetLocation(host string, port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.host = host
	s.port = port
}

// RecordOplogBound records an observed oplog position. The first call
// pins the lower bound; every call moves the upper bound.
func (s *State) RecordOplogBound(ts bson.Timestamp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.oplogFirst == nil {
		first := ts
		s.oplogFirst = &first
	}
	last := ts
	s.oplogLast = &last
}

// setCompleted records the terminal outcome of the owning job.
func (s *State) setCompleted(errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = errMsg == ""
	s.errMsg = errMsg
}

// Snapshot copies the current fields.
func (s *State) Snapshot() StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := StateSnapshot{
		Host:      s.host,
		Port:      s.port,
		Completed: s.completed,
		Error:     s.errMsg,
	}
	if s.oplogFirst != nil {
		first := *s.oplogFirst
		snap.OplogFirst = &first
	}
	if s.oplogLast != nil {
		last := *s.oplogLast
		snap.OplogLast = &last
	}
	return snap
}

// Summary maps target identifiers (shard replset names, or "configsvr")
// to the final snapshot of each dump.
type Summary map[string]StateSnapshot
