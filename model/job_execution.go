package model

import "time"

// JobExecutionStatus represents the status of a single job execution attempt
type JobExecutionStatus string

const (
	ExecutionStatusRunning  JobExecutionStatus = "running"
	ExecutionStatusSuccess  JobExecutionStatus = "success"
	ExecutionStatusFailed   JobExecutionStatus = "failed"
	ExecutionStatusTimedOut JobExecutionStatus = "timed_out"
)

// Terminal reports whether the record is sealed and will not change again.
func (s JobExecutionStatus) Terminal() bool {
	return s == ExecutionStatusSuccess || s == ExecutionStatusFailed || s == ExecutionStatusTimedOut
}

// JobExecutionRecord is the audit record of one execution attempt. Every
// attempt of a run writes its own record; attempts of the same run share
// RunID. At most one record per job is in "running" state at a time.
type JobExecutionRecord struct {
	ID           uint               `gorm:"primaryKey" json:"id"`
	JobID        uint               `gorm:"not null;index" json:"job_id"`
	RunID        string             `gorm:"type:varchar(36);not null;index" json:"run_id"`
	Attempt      int                `gorm:"not null;default:1" json:"attempt"`
	Status       JobExecutionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	StartedAt    time.Time          `gorm:"not null" json:"started_at"`
	FinishedAt   *time.Time         `json:"finished_at,omitempty"`
	DurationMs   int64              `json:"duration_ms"`
	ErrorMessage string             `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// TableName specifies the table name for JobExecutionRecord
func (JobExecutionRecord) TableName() string {
	return "job_execution_records"
}
