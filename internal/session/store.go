// Package session persists the resumable migration plan and its set of
// completed task ids as a single JSON document, written through a
// dedicated writer goroutine that batches updates on a fixed cadence so
// write volume is bounded by wall-clock duration rather than task count.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// FileRecord is the on-disk shape of a FileEntry.
type FileRecord struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// TaskRecord is the on-disk shape of a planned task. Type is "pack" or
// "move_large"; the fields that apply depend on it.
type TaskRecord struct {
	Type     string       `json:"type"`
	TaskID   string       `json:"task_id"`
	PackID   int          `json:"pack_id,omitempty"`
	Files    []FileRecord `json:"files,omitempty"`
	FileInfo *FileRecord  `json:"file_info,omitempty"`
}

// State is the full on-disk session document.
type State struct {
	SourceDir         string       `json:"source_dir"`
	TargetDir         string       `json:"target_dir"`
	TotalTransferSize int64        `json:"total_transfer_size"`
	TaskPlan          []TaskRecord `json:"task_plan"`
	CompletedTaskIDs  []string     `json:"completed_task_ids"`
}

// FlushInterval is the batching cadence for the atomic writer.
const FlushInterval = 5 * time.Second

// Store owns the on-disk transfer_session.json for one run. The plan
// portion (source/target/total/task_plan) is fixed at construction;
// only CompletedTaskIDs changes over the life of the run.
type Store struct {
	path string

	mu        sync.Mutex
	plan      State
	completed map[string]struct{}

	queue chan *string // nil value is the shutdown sentinel
	done  chan struct{}
}

// New creates a Store that will write to path. plan.CompletedTaskIDs, if
// set, seeds the initial completed set (used when resuming).
func New(path string, plan State) *Store {
	completed := make(map[string]struct{}, len(plan.CompletedTaskIDs))
	for _, id := range plan.CompletedTaskIDs {
		completed[id] = struct{}{}
	}
	return &Store{
		path:      path,
		plan:      plan,
		completed: completed,
		queue:     make(chan *string, 4096),
		done:      make(chan struct{}),
	}
}

// Start launches the background writer goroutine. Call once.
func (s *Store) Start() {
	go s.writerLoop()
}

// MarkCompleted enqueues a completed task_id for inclusion in the next
// batched write. Never blocks the caller on disk IO.
func (s *Store) MarkCompleted(taskID string) {
	id := taskID
	s.queue <- &id
}

// Stop signals shutdown, flushes once more, and waits for the writer
// goroutine to exit.
func (s *Store) Stop() {
	s.queue <- nil
	<-s.done
}

// Snapshot returns a copy of the completed-task-id set as currently held
// in memory by the writer. Intended for tests and for the final
// completeness check after a run, not for hot-path polling.
func (s *Store) Snapshot() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.completed))
	for k := range s.completed {
		out[k] = struct{}{}
	}
	return out
}

func (s *Store) writerLoop() {
	defer close(s.done)

	lastWrite := time.Now()
	dirty := false

	for {
		shutdown := false

		select {
		case id := <-s.queue:
			if id == nil {
				shutdown = true
			} else {
				s.mu.Lock()
				s.completed[*id] = struct{}{}
				s.mu.Unlock()
				dirty = true
			}
		case <-time.After(time.Second):
		}

		if shutdown {
			_ = s.flush()
			return
		}

		if dirty && time.Since(lastWrite) >= FlushInterval {
			if err := s.flush(); err == nil {
				dirty = false
				lastWrite = time.Now()
			}
		}
	}
}

// flush re-reads the existing session file to stay the source of truth
// for the plan fields (falling back to the in-memory plan if the file is
// missing or corrupt — e.g. on the very first flush of a fresh run),
// replaces completed_task_ids with the in-memory set, and atomically
// replaces the destination file.
func (s *Store) flush() error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.completed))
	for id := range s.completed {
		ids = append(ids, id)
	}
	plan := s.plan
	s.mu.Unlock()

	state := plan
	if onDisk, err := Load(s.path); err == nil {
		state.SourceDir = onDisk.SourceDir
		state.TargetDir = onDisk.TargetDir
		state.TotalTransferSize = onDisk.TotalTransferSize
		state.TaskPlan = onDisk.TaskPlan
	}
	state.CompletedTaskIDs = ids

	return writeAtomic(s.path, state)
}

func writeAtomic(path string, state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write tmp session file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

// Load reads and parses the session file at path.
func Load(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parse session file %s: %w", path, err)
	}
	return state, nil
}
