package metrics

import (
	"testing"
	"time"
)

func TestRecordProcessed_UpdatesCountersAndLastTime(t *testing.T) {
	m := New()
	snap := m.Snapshot()
	if !snap.LastProcessed.IsZero() {
		t.Fatal("expected zero LastProcessed before any file is processed")
	}

	m.RecordProcessed()
	m.RecordProcessed()
	snap = m.Snapshot()
	if snap.TotalFilesProcessed != 2 {
		t.Errorf("TotalFilesProcessed = %d, want 2", snap.TotalFilesProcessed)
	}
	if snap.FilesProcessedToday != 2 {
		t.Errorf("FilesProcessedToday = %d, want 2", snap.FilesProcessedToday)
	}
	if snap.LastProcessed.IsZero() {
		t.Error("expected non-zero LastProcessed after RecordProcessed")
	}
}

func TestRecordMatchAndExecution_PerRule(t *testing.T) {
	m := New()
	m.RecordMatch("P1")
	m.RecordMatch("P1")
	m.RecordExecution("P1")

	snap := m.Snapshot()
	rs := snap.RuleStats["P1"]
	if rs.MatchCount != 2 {
		t.Errorf("MatchCount = %d, want 2", rs.MatchCount)
	}
	if rs.ExecutionCount != 1 {
		t.Errorf("ExecutionCount = %d, want 1", rs.ExecutionCount)
	}
	if snap.CommandsExecuted != 1 {
		t.Errorf("CommandsExecuted = %d, want 1", snap.CommandsExecuted)
	}
}

func TestRecordDuration_RunningAverage(t *testing.T) {
	m := New()
	m.RecordDuration(100 * time.Millisecond)
	m.RecordDuration(300 * time.Millisecond)

	snap := m.Snapshot()
	if snap.AvgProcessingMs != 200 {
		t.Errorf("AvgProcessingMs = %v, want 200", snap.AvgProcessingMs)
	}
}

func TestLog_RingBufferBounded(t *testing.T) {
	m := New()
	for i := 0; i < ringSize+5; i++ {
		m.Log("event")
	}
	if len(m.RecentActivity()) != ringSize {
		t.Errorf("ring length = %d, want %d", len(m.RecentActivity()), ringSize)
	}
}

func TestRecordError(t *testing.T) {
	m := New()
	m.RecordError()
	m.RecordError()
	if m.Snapshot().ErrorsCount != 2 {
		t.Errorf("ErrorsCount = %d, want 2", m.Snapshot().ErrorsCount)
	}
}
