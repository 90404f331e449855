package api

import (
	"dropwatch/internal/files"
	"dropwatch/internal/tracker"
)

// FromRecord converts a tracker record to its API representation.
func FromRecord(rec files.Record) FileRecord {
	dto := FileRecord{
		FileName:       rec.FileName,
		Locator:        rec.Locator.String(),
		LocatorKind:    rec.Locator.Kind().String(),
		Size:           rec.Size,
		LastModifiedMs: rec.LastModified,
		Incremental:    rec.IsIncremental,
	}
	if rec.LastModified > 0 {
		dto.LastModified = rec.ModTime().UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromRecords converts records in order. A nil input yields an empty slice
// so JSON consumers always see an array.
func FromRecords(records []files.Record) []FileRecord {
	out := make([]FileRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, FromRecord(rec))
	}
	return out
}

// FromTrackerStatus converts a tracker snapshot.
func FromTrackerStatus(status tracker.Status) TrackerStatus {
	return TrackerStatus{
		Running:          status.Running,
		SessionID:        status.SessionID,
		Target:           status.Target,
		ColdScanComplete: status.ColdScanComplete,
		ExistingCount:    status.ExistingCount,
		BaselineNew:      status.BaselineNew,
		Strategy:         status.Strategy,
		WatcherState:     status.WatcherState,
		QueueDepth:       status.QueueDepth,
		QueueCapacity:    status.QueueCapacity,
	}
}
