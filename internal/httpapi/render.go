package httpapi

import (
	"time"

	"github.com/ppiankov/filewatchd/internal/metrics"
	"github.com/ppiankov/filewatchd/internal/registry"
	"github.com/ppiankov/filewatchd/internal/watcher"
)

// folderJSON is one entry of the metrics snapshot's "folders" array.
type folderJSON struct {
	Path           string `json:"path"`
	Active         bool   `json:"active"`
	FilesDetected  int64  `json:"filesDetected"`
	FilesProcessed int64  `json:"filesProcessed"`
}

// patternJSON is one entry of the metrics snapshot's "patterns" array.
type patternJSON struct {
	Name           string `json:"name"`
	Folder         string `json:"folder"`
	Regex          string `json:"regex"`
	MatchCount     int64  `json:"matchCount"`
	ExecutionCount int64  `json:"executionCount"`
}

// activityJSON is one entry of the metrics snapshot's "recentActivity" array.
type activityJSON struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// snapshotJSON is the full shape rendered at GET /api/metrics.
type snapshotJSON struct {
	TotalFilesProcessed   int64   `json:"totalFilesProcessed"`
	FilesProcessedToday   int64   `json:"filesProcessedToday"`
	ActiveThreads         int64   `json:"activeThreads"`
	MemoryUsageMB         int64   `json:"memoryUsageMB"`
	AverageProcessingTime float64 `json:"averageProcessingTime"`
	CommandsExecuted      int64   `json:"commandsExecuted"`
	ErrorsCount           int64   `json:"errorsCount"`
	UptimeSeconds         int64   `json:"uptimeSeconds"`
	LastActivitySeconds   int64   `json:"lastActivitySeconds"`
	FoldersMonitored      int     `json:"foldersMonitored"`
	PatternsConfigured    int     `json:"patternsConfigured"`
	WebServerRunning      bool    `json:"webServerRunning"`

	Folders        []folderJSON   `json:"folders"`
	Patterns       []patternJSON  `json:"patterns"`
	RecentActivity []activityJSON `json:"recentActivity"`
}

// render assembles the JSON body from the registry, the shared metrics
// set, and a live read of the folder tasks -- the HTTP endpoint never
// mutates any of these, it only reads.
func render(reg *registry.Registry, m *metrics.Metrics, folderStats []watcher.Stats, running bool) snapshotJSON {
	snap := m.Snapshot()

	lastActivity := int64(-1)
	if !snap.LastProcessed.IsZero() {
		lastActivity = int64(time.Since(snap.LastProcessed).Seconds())
	}

	folders := make([]folderJSON, len(folderStats))
	for i, s := range folderStats {
		folders[i] = folderJSON{
			Path:           s.FolderPath,
			Active:         s.Active,
			FilesDetected:  s.FilesDetected,
			FilesProcessed: s.FilesProcessed,
		}
	}

	rules := reg.Rules()
	patterns := make([]patternJSON, len(rules))
	for i, r := range rules {
		rs := snap.RuleStats[r.Name]
		patterns[i] = patternJSON{
			Name:           r.Name,
			Folder:         r.OriginalFolder,
			Regex:          r.RawRegex,
			MatchCount:     rs.MatchCount,
			ExecutionCount: rs.ExecutionCount,
		}
	}

	activity := make([]activityJSON, len(snap.RecentActivity))
	for i, a := range snap.RecentActivity {
		activity[i] = activityJSON{
			Message:   a.Message,
			Timestamp: a.Timestamp.Format(time.RFC3339),
		}
	}

	return snapshotJSON{
		TotalFilesProcessed:   snap.TotalFilesProcessed,
		FilesProcessedToday:   snap.FilesProcessedToday,
		ActiveThreads:         snap.ActiveTasks,
		MemoryUsageMB:         snap.MemoryMB,
		AverageProcessingTime: snap.AvgProcessingMs,
		CommandsExecuted:      snap.CommandsExecuted,
		ErrorsCount:           snap.ErrorsCount,
		UptimeSeconds:         int64(time.Since(snap.ServiceStart).Seconds()),
		LastActivitySeconds:   lastActivity,
		FoldersMonitored:      len(reg.Folders()),
		PatternsConfigured:    len(rules),
		WebServerRunning:      running,
		Folders:               folders,
		Patterns:              patterns,
		RecentActivity:        activity,
	}
}
