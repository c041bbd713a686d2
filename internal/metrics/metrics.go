// Package metrics holds the process-wide counters, per-rule execution
// counts, and the bounded recent-activity ring that the HTTP endpoint
// renders as a snapshot.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// ringSize is the capacity of the recent-activity ring buffer.
const ringSize = 20

// ActivityEntry is one recent log-derived event.
type ActivityEntry struct {
	Message   string
	Timestamp time.Time
}

// RuleStats tracks how often a rule matched a filename versus how often
// its command actually ran to completion (or timed out).
type RuleStats struct {
	MatchCount     int64
	ExecutionCount int64
}

// Metrics is the shared, concurrency-safe counter set described by the
// daemon's Metrics Snapshot. Scalars are atomic; the ring buffer and the
// per-rule map each have their own mutex, so a reader of one never blocks
// on the other.
type Metrics struct {
	serviceStart time.Time

	totalProcessed   atomic.Int64
	filesToday       atomic.Int64
	commandsExecuted atomic.Int64
	errorsCount      atomic.Int64
	activeTasks      atomic.Int64
	memoryMB         atomic.Int64

	dayMu   sync.Mutex
	dayDate string

	avgMu sync.Mutex
	avgMs float64
	avgN  int64

	lastMu        sync.Mutex
	lastProcessed time.Time // zero value means "never"

	ruleMu    sync.Mutex
	ruleStats map[string]*RuleStats

	ringMu sync.Mutex
	ring   []ActivityEntry
}

// New creates an empty Metrics set with the service start time set to now.
func New() *Metrics {
	return &Metrics{
		serviceStart: time.Now(),
		dayDate:      today(),
		ruleStats:    make(map[string]*RuleStats),
	}
}

func today() string {
	return time.Now().Format("2006-01-02")
}

// RecordMatch increments the match count for a rule name.
func (m *Metrics) RecordMatch(ruleName string) {
	m.ruleMu.Lock()
	defer m.ruleMu.Unlock()
	m.statsLocked(ruleName).MatchCount++
}

// RecordExecution increments the execution count for a rule name and the
// global commands-executed counter.
func (m *Metrics) RecordExecution(ruleName string) {
	m.commandsExecuted.Add(1)
	m.ruleMu.Lock()
	defer m.ruleMu.Unlock()
	m.statsLocked(ruleName).ExecutionCount++
}

func (m *Metrics) statsLocked(ruleName string) *RuleStats {
	rs, ok := m.ruleStats[ruleName]
	if !ok {
		rs = &RuleStats{}
		m.ruleStats[ruleName] = rs
	}
	return rs
}

// RecordProcessed marks that one more file completed the pipeline
// (successfully or via execution timeout). Rolls filesToday over at local
// midnight.
func (m *Metrics) RecordProcessed() {
	m.totalProcessed.Add(1)

	m.dayMu.Lock()
	d := today()
	if d != m.dayDate {
		m.dayDate = d
		m.filesToday.Store(0)
	}
	m.dayMu.Unlock()
	m.filesToday.Add(1)

	m.lastMu.Lock()
	m.lastProcessed = time.Now()
	m.lastMu.Unlock()
}

// RecordError increments the cumulative error counter.
func (m *Metrics) RecordError() {
	m.errorsCount.Add(1)
}

// RecordDuration folds an execution's elapsed time into the running
// average processing time.
func (m *Metrics) RecordDuration(d time.Duration) {
	m.avgMu.Lock()
	defer m.avgMu.Unlock()
	ms := float64(d.Milliseconds())
	m.avgN++
	m.avgMs += (ms - m.avgMs) / float64(m.avgN)
}

// SetActiveTasks records the current number of running watcher tasks, as
// sampled by the metrics refresher.
func (m *Metrics) SetActiveTasks(n int64) {
	m.activeTasks.Store(n)
}

// SetMemoryMB records the process's resident-set size in megabytes, as
// sampled by the metrics refresher.
func (m *Metrics) SetMemoryMB(mb int64) {
	m.memoryMB.Store(mb)
}

// Log appends a message to the bounded recent-activity ring, evicting the
// oldest entry once the ring is full. Intended to be called once per
// logged line.
func (m *Metrics) Log(message string) {
	m.ringMu.Lock()
	defer m.ringMu.Unlock()
	m.ring = append(m.ring, ActivityEntry{Message: message, Timestamp: time.Now()})
	if len(m.ring) > ringSize {
		m.ring = m.ring[len(m.ring)-ringSize:]
	}
}

// RecentActivity returns a copy of the current ring contents, oldest
// first.
func (m *Metrics) RecentActivity() []ActivityEntry {
	m.ringMu.Lock()
	defer m.ringMu.Unlock()
	out := make([]ActivityEntry, len(m.ring))
	copy(out, m.ring)
	return out
}

// Snapshot is a point-in-time, independently-consistent read of every
// scalar and per-rule counter Metrics owns. Cross-field atomicity between
// counters is not promised, matching the daemon's concurrency contract.
type Snapshot struct {
	TotalFilesProcessed int64
	FilesProcessedToday int64
	CommandsExecuted    int64
	ErrorsCount         int64
	ActiveTasks         int64
	MemoryMB            int64
	AvgProcessingMs     float64
	ServiceStart        time.Time
	LastProcessed       time.Time // zero value means "never"
	RuleStats           map[string]RuleStats
	RecentActivity      []ActivityEntry
}

// Snapshot renders the current state of every counter Metrics owns.
func (m *Metrics) Snapshot() Snapshot {
	m.avgMu.Lock()
	avg := m.avgMs
	m.avgMu.Unlock()

	m.lastMu.Lock()
	last := m.lastProcessed
	m.lastMu.Unlock()

	m.ruleMu.Lock()
	rules := make(map[string]RuleStats, len(m.ruleStats))
	for name, rs := range m.ruleStats {
		rules[name] = *rs
	}
	m.ruleMu.Unlock()

	return Snapshot{
		TotalFilesProcessed: m.totalProcessed.Load(),
		FilesProcessedToday: m.filesToday.Load(),
		CommandsExecuted:    m.commandsExecuted.Load(),
		ErrorsCount:         m.errorsCount.Load(),
		ActiveTasks:         m.activeTasks.Load(),
		MemoryMB:            m.memoryMB.Load(),
		AvgProcessingMs:     avg,
		ServiceStart:        m.serviceStart,
		LastProcessed:       last,
		RuleStats:           rules,
		RecentActivity:      m.RecentActivity(),
	}
}
