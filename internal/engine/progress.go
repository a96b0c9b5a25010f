package engine

import (
	"fmt"
	"sync"
)

// ProgressFunc reports a human-readable status line and, when non-nil,
// the overall completion percentage. Called at most once per percentage
// point so a UI callback isn't flooded on every byte credited.
type ProgressFunc func(message string, percent *int)

// LogFunc reports a diagnostic line (errors, recoverable retries, etc).
type LogFunc func(line string)

// Progress tracks bytes credited against a known total and throttles
// status callbacks to one per integer percentage point.
type Progress struct {
	mu          sync.Mutex
	processed   int64
	total       int64
	lastPercent int
	onStatus    ProgressFunc
}

// NewProgress creates a Progress against total bytes. A total of 0
// reports 100% on first credit (nothing to do).
func NewProgress(total int64, onStatus ProgressFunc) *Progress {
	return &Progress{total: total, lastPercent: -1, onStatus: onStatus}
}

// Credit adds n bytes to the processed total and fires onStatus if the
// integer percentage advanced.
func (p *Progress) Credit(n int64) {
	p.mu.Lock()
	p.processed += n
	pct := 100
	if p.total > 0 {
		pct = int(p.processed * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
	}
	advanced := pct > p.lastPercent
	if advanced {
		p.lastPercent = pct
	}
	p.mu.Unlock()

	if advanced && p.onStatus != nil {
		p.onStatus(fmt.Sprintf("%d%% complete", pct), &pct)
	}
}

// Preload credits bytes already accounted for by a resumed session
// without re-triggering a status callback for every one of them —
// only the resulting percentage is reported once.
func (p *Progress) Preload(n int64) {
	p.mu.Lock()
	p.processed += n
	pct := 100
	if p.total > 0 {
		pct = int(p.processed * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
	}
	p.lastPercent = pct
	p.mu.Unlock()

	if p.onStatus != nil {
		p.onStatus(fmt.Sprintf("%d%% complete (resumed)", pct), &pct)
	}
}
