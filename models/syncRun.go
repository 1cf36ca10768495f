package models

import "time"

const (
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncTriggeredManual = "manual"
	SyncTriggeredSystem = "system"
)

// SyncRun records one full reconciliation pass: how many materials were
// processed and how it went. It is run history, not an adjustment ledger;
// the platform remains the source of truth for applied quantities.
type SyncRun struct {
	ID            uint       `gorm:"primary_key" json:"id"`
	Status        string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy   string     `gorm:"size:20" json:"triggered_by"`
	MaterialCount int        `json:"material_count"`
	AdjustedCount int        `json:"adjusted_count"`
	SkippedCount  int        `json:"skipped_count"`
	ErrorCount    int        `json:"error_count"`
	StatsJSON     []byte     `gorm:"type:json" json:"stats"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	DurationMs    int64      `json:"duration_ms"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type SyncRunError struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	SyncRunId uint      `gorm:"index;not null" json:"sync_run_id"`
	Material  string    `gorm:"size:10" json:"material"`
	ErrorCode string    `gorm:"size:64" json:"error_code"`
	Message   string    `gorm:"type:text" json:"message"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
