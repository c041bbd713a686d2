package metrics

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// refreshInterval is the daemon's metrics-refresh cadence.
const refreshInterval = 5 * time.Second

// ActiveCounter reports the number of currently-running watcher tasks, so
// the refresher can recompute active_tasks from observable flags instead
// of duplicating watcher bookkeeping.
type ActiveCounter interface {
	ActiveCount() int
}

// Refresher periodically samples process memory (resident set, via
// gopsutil) and the supervisor's active watcher count into a Metrics set.
type Refresher struct {
	metrics *Metrics
	active  ActiveCounter
	pid     int32
}

// NewRefresher creates a Refresher for the current process.
func NewRefresher(m *Metrics, active ActiveCounter, pid int) *Refresher {
	return &Refresher{metrics: m, active: active, pid: int32(pid)}
}

// Run blocks, sampling every refreshInterval, until ctx is done. Run
// returns promptly once ctx.Done() fires because the only blocking point
// is the ticker select.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	r.sampleOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sampleOnce()
		}
	}
}

func (r *Refresher) sampleOnce() {
	if r.active != nil {
		r.metrics.SetActiveTasks(int64(r.active.ActiveCount()))
	}

	proc, err := process.NewProcess(r.pid)
	if err != nil {
		return
	}
	info, err := proc.MemoryInfo()
	if err != nil || info == nil {
		return
	}
	r.metrics.SetMemoryMB(int64(info.RSS / (1024 * 1024)))
}
