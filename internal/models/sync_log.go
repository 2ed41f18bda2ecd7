// internal/models/sync_log.go
package models

import "time"

// SyncLog is the append-only record of a sync, refresh or cleanup run. A row
// starts as in_progress and is finalized exactly once; finished rows are never
// updated again. At most one in_progress row per sync-* type may exist, which
// is what the manual-trigger conflict check relies on.
type SyncLog struct {
	BaseModel
	Type       SyncType   `json:"type" gorm:"type:varchar(30);not null;index"`
	Status     SyncStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	Processed  int        `json:"processed" gorm:"default:0"`
	Errored    int        `json:"errored" gorm:"default:0"`
	Metadata   JSONB      `json:"metadata" gorm:"type:jsonb"`
	StartedAt  time.Time  `json:"started_at" gorm:"not null;index"`
	FinishedAt *time.Time `json:"finished_at"`
}
