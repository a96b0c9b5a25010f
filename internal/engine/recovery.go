package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fasttransfer/fasttransfer/internal/session"
)

func toTaskRecord(t Task) session.TaskRecord {
	kind := t.Kind
	if kind == TaskResumeExtract {
		kind = TaskPack // on disk a resumed pack is still a "pack"
	}
	rec := session.TaskRecord{
		Type:   kind.String(),
		TaskID: t.TaskID,
		PackID: t.PackID,
	}
	switch t.Kind {
	case TaskMoveLarge:
		rec.FileInfo = &session.FileRecord{Path: t.File.Path, Size: t.File.Size}
	default:
		rec.Files = make([]session.FileRecord, len(t.Files))
		for i, f := range t.Files {
			rec.Files[i] = session.FileRecord{Path: f.Path, Size: f.Size}
		}
	}
	return rec
}

func fromTaskRecord(rec session.TaskRecord) Task {
	t := Task{TaskID: rec.TaskID, PackID: rec.PackID}
	switch rec.Type {
	case TaskMoveLarge.String():
		t.Kind = TaskMoveLarge
		if rec.FileInfo != nil {
			t.File = FileEntry{Path: rec.FileInfo.Path, Size: rec.FileInfo.Size}
		}
	default:
		t.Kind = TaskPack
		t.Files = make([]FileEntry, len(rec.Files))
		for i, f := range rec.Files {
			t.Files[i] = FileEntry{Path: f.Path, Size: f.Size}
		}
	}
	return t
}

// toSessionState builds the on-disk session document for a freshly
// built plan, or for re-persisting a resumed one under the same
// completed-id set it was recovered with.
func toSessionState(plan Plan, completedIDs []string) session.State {
	records := make([]session.TaskRecord, len(plan.Tasks))
	for i, t := range plan.Tasks {
		records[i] = toTaskRecord(t)
	}
	return session.State{
		SourceDir:         plan.SourceRoot,
		TargetDir:         plan.TargetRoot,
		TotalTransferSize: plan.TotalBytes,
		TaskPlan:          records,
		CompletedTaskIDs:  completedIDs,
	}
}

// recoverPlan rebuilds a Plan from a loaded session document, honoring
// the original task order except that any incomplete Pack whose
// archive is still on the cache disk is converted to ResumeExtract and
// moved to the front, so a crash mid-extract doesn't re-pack work
// that's already durably archived. Returns the bytes already accounted
// for by completed tasks, so the caller can preload progress instead
// of restarting it from zero.
func recoverPlan(st session.State, cfg Config, cacheDir string) (Plan, int64, error) {
	if st.SourceDir != cfg.SourceRoot || st.TargetDir != cfg.TargetRoot {
		return Plan{}, 0, fmt.Errorf("%w: session has %s -> %s, config has %s -> %s",
			ErrPlanRejected, st.SourceDir, st.TargetDir, cfg.SourceRoot, cfg.TargetRoot)
	}

	completed := make(map[string]struct{}, len(st.CompletedTaskIDs))
	for _, id := range st.CompletedTaskIDs {
		completed[id] = struct{}{}
	}

	var completedBytes int64
	var resumeExtracts, rest []Task

	for _, rec := range st.TaskPlan {
		t := fromTaskRecord(rec)
		if _, done := completed[t.TaskID]; done {
			completedBytes += t.Bytes()
			continue
		}

		if t.Kind == TaskPack {
			archivePath := filepath.Join(cacheDir, packArchiveName(t.PackID))
			if _, err := os.Stat(archivePath); err == nil {
				t.Kind = TaskResumeExtract
				resumeExtracts = append(resumeExtracts, t)
				continue
			}
		}
		rest = append(rest, t)
	}

	tasks := append(resumeExtracts, rest...)
	return Plan{
		SourceRoot: st.SourceDir,
		TargetRoot: st.TargetDir,
		TotalBytes: st.TotalTransferSize,
		Tasks:      tasks,
	}, completedBytes, nil
}
